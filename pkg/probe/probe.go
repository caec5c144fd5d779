// Package probe runs the startup checks: database, persistence targets and
// the configured vehicle link.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds a check whose Probe leaves Timeout unset.
const DefaultTimeout = 5 * time.Second

// CheckFunc returns nil when the checked resource is usable.
type CheckFunc func(ctx context.Context) error

// Probe is one named startup check. A failing critical probe stops startup;
// any other failure is only reported.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool
	Timeout  time.Duration
}

// Result is the outcome of running a Probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Status is PASS, WARN (non-critical failure) or FAIL.
func (r Result) Status() string {
	switch {
	case r.Error == nil:
		return "PASS"
	case r.Probe.Critical:
		return "FAIL"
	default:
		return "WARN"
	}
}

func (r Result) String() string {
	return fmt.Sprintf("[%s] %-20s (%v)", r.Status(), r.Probe.Name, r.Duration.Round(time.Millisecond))
}

// Run executes the probes one after another, each under its own deadline.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, 0, len(probes))
	for _, p := range probes {
		results = append(results, runOne(ctx, p))
	}
	return results
}

func runOne(ctx context.Context, p Probe) Result {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := p.Check(checkCtx)
	return Result{Probe: p, Error: err, Duration: time.Since(start)}
}

// AnalyzeResults logs one line per result and returns the joined errors of
// the failed critical probes, or nil.
func AnalyzeResults(results []Result) error {
	slog.Info("Startup Checks Summary")

	var failed []error
	for _, r := range results {
		switch r.Status() {
		case "PASS":
			slog.Info(r.String())
		case "WARN":
			slog.Warn(r.String(), "error", r.Error)
		default:
			slog.Error(r.String(), "error", r.Error)
			failed = append(failed, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
		}
	}
	return errors.Join(failed...)
}
