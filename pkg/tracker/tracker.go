// Package tracker counts link traffic per channel.
package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks traffic statistics per channel (e.g. "serial", "mock").
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ChannelStats
}

// ChannelStats holds counters for a single channel.
// Fields are accessed atomically.
type ChannelStats struct {
	FramesReceived int64 `json:"frames_received"`
	ParseFailures  int64 `json:"parse_failures"`
	CommandsSent   int64 `json:"commands_sent"`
	SendFailures   int64 `json:"send_failures"`
	BytesReceived  int64 `json:"bytes_received"`
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*ChannelStats),
	}
}

// getStats returns the stats object for a channel, creating it if needed.
func (t *Tracker) getStats(channel string) *ChannelStats {
	t.mu.RLock()
	s, ok := t.stats[channel]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[channel]; ok {
		return s
	}
	s = &ChannelStats{}
	t.stats[channel] = s
	return s
}

// TrackFrame increments the received telemetry frame counter.
func (t *Tracker) TrackFrame(channel string) {
	atomic.AddInt64(&t.getStats(channel).FramesReceived, 1)
}

func (t *Tracker) TrackParseFailure(channel string) {
	atomic.AddInt64(&t.getStats(channel).ParseFailures, 1)
}

func (t *Tracker) TrackSent(channel string) {
	atomic.AddInt64(&t.getStats(channel).CommandsSent, 1)
}

func (t *Tracker) TrackSendFailure(channel string) {
	atomic.AddInt64(&t.getStats(channel).SendFailures, 1)
}

func (t *Tracker) TrackBytes(channel string, n int) {
	atomic.AddInt64(&t.getStats(channel).BytesReceived, int64(n))
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ChannelStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ChannelStats)
	for k, v := range t.stats {
		result[k] = ChannelStats{
			FramesReceived: atomic.LoadInt64(&v.FramesReceived),
			ParseFailures:  atomic.LoadInt64(&v.ParseFailures),
			CommandsSent:   atomic.LoadInt64(&v.CommandsSent),
			SendFailures:   atomic.LoadInt64(&v.SendFailures),
			BytesReceived:  atomic.LoadInt64(&v.BytesReceived),
		}
	}
	return result
}
