package api

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"pathplanner/pkg/tracker"
)

// StatsHandler reports link counters and process diagnostics.
type StatsHandler struct {
	tracker *tracker.Tracker
	started time.Time

	mu     sync.Mutex
	maxMem uint64
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(t *tracker.Tracker) *StatsHandler {
	return &StatsHandler{tracker: t, started: time.Now()}
}

// ChannelStatsDTO is one link channel's counters.
type ChannelStatsDTO struct {
	FramesReceived int64 `json:"frames_received"`
	ParseFailures  int64 `json:"parse_failures"`
	CommandsSent   int64 `json:"commands_sent"`
	SendFailures   int64 `json:"send_failures"`
	BytesReceived  int64 `json:"bytes_received"`
	// ParseRate is the percentage of received lines that parsed.
	ParseRate int64 `json:"parse_rate"`
}

// Diagnostics describes the server process.
type Diagnostics struct {
	MemoryMB    uint64  `json:"memory_mb"`
	MemoryMaxMB uint64  `json:"memory_max_mb"`
	Goroutines  int     `json:"goroutines"`
	UptimeSec   float64 `json:"uptime_sec"`
}

// StatsResponse is the /api/stats body.
type StatsResponse struct {
	Diagnostics Diagnostics                `json:"diagnostics"`
	Channels    map[string]ChannelStatsDTO `json:"channels"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	resp := StatsResponse{
		Diagnostics: h.gatherDiagnostics(),
		Channels:    make(map[string]ChannelStatsDTO, len(snapshot)),
	}

	for channel, stats := range snapshot {
		total := stats.FramesReceived + stats.ParseFailures
		rate := int64(0)
		if total > 0 {
			rate = (stats.FramesReceived * 100) / total
		}
		resp.Channels[channel] = ChannelStatsDTO{
			FramesReceived: stats.FramesReceived,
			ParseFailures:  stats.ParseFailures,
			CommandsSent:   stats.CommandsSent,
			SendFailures:   stats.SendFailures,
			BytesReceived:  stats.BytesReceived,
			ParseRate:      rate,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) gatherDiagnostics() Diagnostics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.mu.Lock()
	if m.Sys > h.maxMem {
		h.maxMem = m.Sys
	}
	maxMem := h.maxMem
	h.mu.Unlock()

	return Diagnostics{
		MemoryMB:    bToMb(m.Sys),
		MemoryMaxMB: bToMb(maxMem),
		Goroutines:  runtime.NumGoroutine(),
		UptimeSec:   time.Since(h.started).Seconds(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
