package link

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"sync"
	"time"
)

// Backoff computes exponential retry delays with 10% jitter.
type Backoff struct {
	mu        sync.Mutex
	failures  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewBackoff creates a backoff starting at baseDelay and capped at maxDelay.
func NewBackoff(baseDelay, maxDelay time.Duration) *Backoff {
	return &Backoff{baseDelay: baseDelay, maxDelay: maxDelay}
}

// RecordFailure counts a failed attempt and returns the delay before the
// next one.
func (b *Backoff) RecordFailure() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	return b.delay(b.failures)
}

// RecordSuccess clears the failure count.
func (b *Backoff) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// Failures returns the current failure count.
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Backoff) delay(failures int) time.Duration {
	// baseDelay * 2^(failures-1)
	multiplier := math.Pow(2, float64(failures-1))
	delay := time.Duration(float64(b.baseDelay) * multiplier)
	if delay > b.maxDelay {
		delay = b.maxDelay
	}
	jitter := time.Duration(rand.Float64() * 0.1 * float64(delay))
	return delay + jitter
}

// DialConfig controls DialTCP.
type DialConfig struct {
	Timeout   time.Duration
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DialTCP connects to addr, retrying with backoff up to Retries times.
// Failures wrap ErrTransport.
func DialTCP(ctx context.Context, addr string, cfg DialConfig) (net.Conn, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 250 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	b := NewBackoff(cfg.BaseDelay, cfg.MaxDelay)
	d := net.Dialer{Timeout: cfg.Timeout}

	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			b.RecordSuccess()
			return conn, nil
		}
		if b.Failures() >= cfg.Retries || ctx.Err() != nil {
			return nil, fmt.Errorf("dial %s: %w: %v", addr, ErrTransport, err)
		}
		wait := b.RecordFailure()
		slog.Warn("Link: dial failed, retrying", "addr", addr, "attempt", b.Failures(), "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial %s: %w: %v", addr, ErrTransport, ctx.Err())
		case <-time.After(wait):
		}
	}
}
