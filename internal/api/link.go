package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"pathplanner/pkg/link"
	"pathplanner/pkg/logging"
	"pathplanner/pkg/model"
	"pathplanner/pkg/pathstore"
)

// Sender is the outbound side of a vehicle link.
type Sender interface {
	SendWaypoints(wps []model.Waypoint) error
	SendMove(roll, pitch, yaw, throttle float64) error
	Summary() link.Summary
}

// LinkHandler relays operator commands to the vehicle.
type LinkHandler struct {
	sender   Sender
	store    *pathstore.Store
	provider string
}

// NewLinkHandler creates a new LinkHandler. sender is nil when no link is
// configured; every command then fails with 503.
func NewLinkHandler(sender Sender, st *pathstore.Store, provider string) *LinkHandler {
	return &LinkHandler{sender: sender, store: st, provider: provider}
}

// LinkStatusResponse describes the configured link.
type LinkStatusResponse struct {
	Provider  string       `json:"provider"`
	Connected bool         `json:"connected"`
	Summary   link.Summary `json:"summary"`
}

// SendResponse reports what went out on the wire.
type SendResponse struct {
	Command string `json:"command"`
	Path    string `json:"path,omitempty"`
	Points  int    `json:"points,omitempty"`
}

type moveCommandRequest struct {
	Roll     *float64 `json:"roll"`
	Pitch    *float64 `json:"pitch"`
	Yaw      *float64 `json:"yaw"`
	Throttle *float64 `json:"throttle"`
}

// HandleStatus returns the provider name and dashboard summary.
func (h *LinkHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := LinkStatusResponse{Provider: h.provider, Summary: link.EmptySummary()}
	if h.sender != nil {
		resp.Connected = true
		resp.Summary = h.sender.Summary()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSendWaypoints transmits the active path's waypoints.
func (h *LinkHandler) HandleSendWaypoints(w http.ResponseWriter, r *http.Request) {
	if h.sender == nil {
		writeError(w, errNoLink)
		return
	}
	p := h.store.ActivePath()
	if err := h.sender.SendWaypoints(p.Waypoints); err != nil {
		slog.Warn("API: failed to send waypoints", "path", p.Name, "error", err)
		writeError(w, err)
		return
	}
	slog.Info("API: waypoints sent", "path", p.Name, "points", len(p.Waypoints))
	logging.LogEvent(logging.Event{
		Type:  logging.EventSend,
		Title: fmt.Sprintf("Sent %s (%d waypoints)", p.Name, len(p.Waypoints)),
	})
	writeJSON(w, http.StatusOK, SendResponse{Command: link.WaypointsCommand{}.Name(), Path: p.Name, Points: len(p.Waypoints)})
}

// HandleSendMove relays a raw manual-control command. All four axes are
// required.
func (h *LinkHandler) HandleSendMove(w http.ResponseWriter, r *http.Request) {
	if h.sender == nil {
		writeError(w, errNoLink)
		return
	}
	var req moveCommandRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Roll == nil || req.Pitch == nil || req.Yaw == nil || req.Throttle == nil {
		writeError(w, fmt.Errorf("roll, pitch, yaw and throttle are required: %w", pathstore.ErrInvalidInput))
		return
	}
	if err := h.sender.SendMove(*req.Roll, *req.Pitch, *req.Yaw, *req.Throttle); err != nil {
		slog.Warn("API: failed to send move", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SendResponse{Command: link.MoveCommand{}.Name()})
}
