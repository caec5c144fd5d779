package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pathplanner/pkg/geo"
	"pathplanner/pkg/link"
	"pathplanner/pkg/logging"
	"pathplanner/pkg/store"
)

const saveTimeout = 2 * time.Second

// TelemetryRecorder is the link observer. It feeds the GeoJSON track,
// watches geofences, logs frames to the telemetry table and relays them to
// the API.
type TelemetryRecorder struct {
	session string
	st      store.TelemetryStore
	track   *geo.Track
	fences  *geo.FenceService
	sink    TelemetrySink

	mu    sync.Mutex
	zones map[string]bool
	last  *link.Telemetry
}

// NewTelemetryRecorder creates a recorder with a fresh session ID. st,
// fences and sink may be nil.
func NewTelemetryRecorder(st store.TelemetryStore, track *geo.Track, fences *geo.FenceService, sink TelemetrySink) *TelemetryRecorder {
	if track == nil {
		track = geo.NewTrack(0)
	}
	return &TelemetryRecorder{
		session: uuid.NewString(),
		st:      st,
		track:   track,
		fences:  fences,
		sink:    sink,
		zones:   make(map[string]bool),
	}
}

// Session identifies this run's rows in the telemetry table.
func (r *TelemetryRecorder) Session() string {
	return r.session
}

// Track returns the live track.
func (r *TelemetryRecorder) Track() *geo.Track {
	return r.track
}

// Latest returns the most recent frame, if any.
func (r *TelemetryRecorder) Latest() (link.Telemetry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return link.Telemetry{}, false
	}
	return *r.last, true
}

// OnTelemetry implements link.Observer.
func (r *TelemetryRecorder) OnTelemetry(t link.Telemetry) {
	r.mu.Lock()
	r.last = &t
	r.mu.Unlock()

	if t.HasPosition() {
		r.track.Add(geo.Fix{
			Point:   geo.Point{Lat: *t.Lat, Lon: *t.Lon},
			Alt:     t.Alt,
			Heading: t.Heading,
			Time:    t.ReceivedAt,
		})
		r.checkZones(*t.Lat, *t.Lon)
	}

	if r.st != nil {
		r.save(t)
	}
	if r.sink != nil {
		r.sink.UpdateTelemetry(t)
	}
}

// OnParseError implements link.Observer.
func (r *TelemetryRecorder) OnParseError(line string, err error) {
	slog.Debug("Recorder: skipped line", "line", line, "error", err)
}

func (r *TelemetryRecorder) save(t link.Telemetry) {
	raw, err := json.Marshal(t.Raw)
	if err != nil {
		slog.Warn("Recorder: cannot encode raw frame", "error", err)
		raw = []byte("{}")
	}
	rec := &store.TelemetryRecord{
		Session:    r.session,
		ReceivedAt: t.ReceivedAt,
		Lat:        t.Lat,
		Lon:        t.Lon,
		Alt:        t.Alt,
		Heading:    t.Heading,
		Raw:        string(raw),
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.st.SaveTelemetry(ctx, rec); err != nil {
		slog.Warn("Recorder: failed to save telemetry", "error", err)
	}
}

// checkZones logs geofence entries and exits.
func (r *TelemetryRecorder) checkZones(lat, lon float64) {
	if r.fences == nil {
		return
	}
	now := make(map[string]bool)
	for _, z := range r.fences.ZonesAt(lat, lon) {
		now[z.Name] = true
	}

	r.mu.Lock()
	var entered, left []string
	for name := range now {
		if !r.zones[name] {
			entered = append(entered, name)
		}
	}
	for name := range r.zones {
		if !now[name] {
			left = append(left, name)
		}
	}
	r.zones = now
	r.mu.Unlock()

	sort.Strings(entered)
	sort.Strings(left)
	if len(entered) > 0 {
		slog.Warn("Recorder: vehicle entered geofence", "zones", entered, "lat", lat, "lon", lon)
		logging.LogEvent(logging.Event{Type: logging.EventZone, Title: "Entered " + strings.Join(entered, ", ")})
	}
	if len(left) > 0 {
		slog.Info("Recorder: vehicle left geofence", "zones", left)
		logging.LogEvent(logging.Event{Type: logging.EventZone, Title: "Left " + strings.Join(left, ", ")})
	}
}

// Zones returns the names of the geofences the vehicle is currently inside.
func (r *TelemetryRecorder) Zones() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.zones))
	for name := range r.zones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
