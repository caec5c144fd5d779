package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pathplanner/pkg/core"
	"pathplanner/pkg/geo"
	"pathplanner/pkg/link"
	"pathplanner/pkg/model"
	"pathplanner/pkg/pathstore"
	"pathplanner/pkg/store"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 5000
)

// TelemetryHandler serves what the vehicle reported over the link.
type TelemetryHandler struct {
	rec     *core.TelemetryRecorder
	status  core.LinkStatus
	history store.TelemetryStore
	paths   *pathstore.Store
	frame   geo.LocalFrame
}

// NewTelemetryHandler creates a new TelemetryHandler. status and history may
// be nil when there is no link or telemetry is not recorded.
func NewTelemetryHandler(rec *core.TelemetryRecorder, status core.LinkStatus, history store.TelemetryStore, paths *pathstore.Store, frame geo.LocalFrame) *TelemetryHandler {
	return &TelemetryHandler{rec: rec, status: status, history: history, paths: paths, frame: frame}
}

// TelemetryResponse is the API response structure.
type TelemetryResponse struct {
	Connected bool            `json:"connected"`
	Session   string          `json:"session"`
	Summary   link.Summary    `json:"summary"`
	Lines     []string        `json:"lines"`
	Latest    *link.Telemetry `json:"latest,omitempty"`
	Local     *model.Waypoint `json:"local,omitempty"` // latest fix in path coordinates
	Zones     []string        `json:"zones"`
}

// HistoryRecord is one stored telemetry frame.
type HistoryRecord struct {
	ReceivedAt time.Time `json:"received_at"`
	Lat        *float64  `json:"lat,omitempty"`
	Lon        *float64  `json:"lon,omitempty"`
	Alt        *float64  `json:"alt,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	Raw        string    `json:"raw"`
}

// HandleTelemetry returns the dashboard summary and the latest frame.
func (h *TelemetryHandler) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	resp := TelemetryResponse{
		Connected: h.status != nil,
		Session:   h.rec.Session(),
		Summary:   link.EmptySummary(),
		Zones:     h.rec.Zones(),
	}
	if h.status != nil {
		resp.Summary = h.status.Summary()
	}
	resp.Lines = resp.Summary.Lines()
	if t, ok := h.rec.Latest(); ok {
		resp.Latest = &t
		if t.HasPosition() {
			alt := h.frame.Alt
			if t.Alt != nil {
				alt = *t.Alt
			}
			wp := h.frame.ToLocal(geo.Point{Lat: *t.Lat, Lon: *t.Lon}, alt)
			resp.Local = &wp
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleTrack returns the flown track and the active planned path as a
// GeoJSON FeatureCollection.
func (h *TelemetryHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	fc := h.rec.Track().FeatureCollection()
	if p := h.paths.ActivePath(); len(p.Waypoints) > 0 && r.URL.Query().Get("path") != "false" {
		fc.Append(geo.PathFeature(p.Name, p.Waypoints, h.frame))
	}
	w.Header().Set("Content-Type", "application/geo+json")
	data, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, err)
		return
	}
	_, _ = w.Write(data)
}

// HandleHistory returns the newest stored frames of this session.
func (h *TelemetryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, []HistoryRecord{})
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, fmt.Errorf("limit %q: %w", v, pathstore.ErrInvalidInput))
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	recs, err := h.history.RecentTelemetry(r.Context(), h.rec.Session(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]HistoryRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, HistoryRecord{
			ReceivedAt: rec.ReceivedAt,
			Lat:        rec.Lat,
			Lon:        rec.Lon,
			Alt:        rec.Alt,
			Heading:    rec.Heading,
			Raw:        rec.Raw,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
