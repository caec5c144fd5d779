package link

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_ExponentialDelay(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantMinMs int64
		wantMaxMs int64
	}{
		{"First failure", 1, 1000, 1100},
		{"Second failure", 2, 2000, 2200},
		{"Third failure", 3, 4000, 4400},
		{"Max cap hit", 10, 60000, 66000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackoff(time.Second, 60*time.Second)
			var delay time.Duration
			for i := 0; i < tt.failures; i++ {
				delay = b.RecordFailure()
			}
			if b.Failures() != tt.failures {
				t.Errorf("Failures() = %d, want %d", b.Failures(), tt.failures)
			}
			if ms := delay.Milliseconds(); ms < tt.wantMinMs || ms > tt.wantMaxMs {
				t.Errorf("delay = %dms, want between %dms and %dms", ms, tt.wantMinMs, tt.wantMaxMs)
			}
		})
	}

	b := NewBackoff(time.Second, time.Minute)
	b.RecordFailure()
	b.RecordSuccess()
	assert.Equal(t, 0, b.Failures())
}

func TestDialTCP(t *testing.T) {
	ctx := context.Background()
	cfg := DialConfig{Timeout: time.Second, Retries: 2, BaseDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond}

	t.Run("Connects", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		conn, err := DialTCP(ctx, ln.Addr().String(), cfg)
		require.NoError(t, err)
		conn.Close()
	})

	t.Run("GivesUp", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		ln.Close()

		_, err = DialTCP(ctx, addr, cfg)
		assert.ErrorIs(t, err, ErrTransport)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		ln.Close()

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = DialTCP(cctx, addr, DialConfig{Retries: 100, BaseDelay: time.Hour})
		assert.ErrorIs(t, err, ErrTransport)
	})
}
