package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"pathplanner/pkg/pathstore"
	"pathplanner/pkg/sim"
)

// PlaybackHandler drives the simulation clock.
type PlaybackHandler struct {
	clock *sim.Clock
}

// NewPlaybackHandler creates a new PlaybackHandler.
func NewPlaybackHandler(clock *sim.Clock) *PlaybackHandler {
	return &PlaybackHandler{clock: clock}
}

// PlaybackResponse is the clock state plus the time label.
type PlaybackResponse struct {
	sim.Frame
	Label string `json:"label"`
	// Applied is false when the action was a no-op for the current state,
	// e.g. scrubbing while playing.
	Applied *bool `json:"applied,omitempty"`
}

type scrubRequest struct {
	Fraction *float64 `json:"fraction"`
}

func newPlaybackResponse(f sim.Frame) PlaybackResponse {
	return PlaybackResponse{Frame: f, Label: f.Label()}
}

// HandleGet returns the current frame.
func (h *PlaybackHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newPlaybackResponse(h.clock.Frame()))
}

// HandleAction applies start, pause, resume, toggle, stop or scrub.
func (h *PlaybackHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")

	var applied bool
	if action == "scrub" {
		var req scrubRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.Fraction == nil {
			writeError(w, fmt.Errorf("fraction is required: %w", pathstore.ErrInvalidInput))
			return
		}
		applied = h.clock.ScrubTo(*req.Fraction)
	} else {
		fn, ok := sim.ParseAction(action)
		if !ok {
			writeError(w, fmt.Errorf("unknown playback action %q: %w", action, pathstore.ErrInvalidInput))
			return
		}
		before := h.clock.Frame()
		fn(h.clock)
		after := h.clock.Frame()
		applied = before.State != after.State || before.Index != after.Index
	}

	f := h.clock.Frame()
	slog.Debug("API: playback action", "action", action, "applied", applied, "state", f.State, "index", f.Index)
	resp := newPlaybackResponse(f)
	resp.Applied = &applied
	writeJSON(w, http.StatusOK, resp)
}
