package core

import (
	"context"
	"log/slog"
	"time"

	"pathplanner/pkg/sim"
	"pathplanner/pkg/store"
	"pathplanner/pkg/tracker"
)

// NewStatusJob periodically logs playback and link state. linkStatus and
// tr may be nil.
func NewStatusJob(interval time.Duration, linkStatus LinkStatus, tr *tracker.Tracker) *TimeJob {
	return NewTimeJob("Status", interval, func(_ context.Context, f sim.Frame) {
		args := []any{"playback", f.State, "index", f.Index, "samples", f.Len, "time", f.Label()}
		if linkStatus != nil {
			s := linkStatus.Summary()
			args = append(args, "gps", s.GPS, "alt", s.Altitude, "heading", s.Heading, "frames", s.Frames, "parse_errors", s.ParseErrors)
		}
		if tr != nil {
			for ch, st := range tr.Snapshot() {
				args = append(args, ch+"_bytes", st.BytesReceived, ch+"_sent", st.CommandsSent)
			}
		}
		slog.Info("Status", args...)
	})
}

// NewPruneJob deletes telemetry rows older than retention.
func NewPruneJob(interval, retention time.Duration, st store.TelemetryStore) *TimeJob {
	return NewTimeJob("TelemetryPrune", interval, func(ctx context.Context, _ sim.Frame) {
		if retention <= 0 {
			return
		}
		n, err := st.PruneTelemetry(ctx, retention)
		if err != nil {
			slog.Error("TelemetryPrune: failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("TelemetryPrune: removed old telemetry", "rows", n, "retention", retention)
		}
	})
}
