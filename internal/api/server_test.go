package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathplanner/pkg/config"
	"pathplanner/pkg/core"
	"pathplanner/pkg/db"
	"pathplanner/pkg/geo"
	"pathplanner/pkg/link"
	"pathplanner/pkg/logging"
	"pathplanner/pkg/model"
	"pathplanner/pkg/pathstore"
	"pathplanner/pkg/sim"
	"pathplanner/pkg/store"
	"pathplanner/pkg/tracker"
	"pathplanner/pkg/version"
)

type fakeSender struct {
	mu        sync.Mutex
	waypoints [][]model.Waypoint
	moves     [][4]float64
	err       error
}

func (f *fakeSender) SendWaypoints(wps []model.Waypoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.waypoints = append(f.waypoints, wps)
	return nil
}

func (f *fakeSender) SendMove(roll, pitch, yaw, throttle float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.moves = append(f.moves, [4]float64{roll, pitch, yaw, throttle})
	return nil
}

func (f *fakeSender) Summary() link.Summary {
	s := link.EmptySummary()
	s.GPS = "51.5,-0.1"
	s.Frames = 7
	return s
}

type testEnv struct {
	store    *pathstore.Store
	clock    *sim.Clock
	engine   *core.Engine
	rec      *core.TelemetryRecorder
	sqlite   *store.SQLiteStore
	sender   *fakeSender
	tracker  *tracker.Tracker
	prov     *config.UnifiedProvider
	shutdown chan struct{}
	mux      *http.ServeMux
}

// newTestEnv wires the API over real components. A nil sender means no link.
func newTestEnv(t *testing.T, sender *fakeSender) *testEnv {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	sq := store.NewSQLiteStore(d)
	t.Cleanup(func() { sq.Close() })

	prov := config.NewProvider(config.DefaultConfig(), sq)
	ps := pathstore.New(nil, true)
	clock := sim.NewClock(20 * time.Millisecond)
	engine := core.NewEngine(ps, clock, prov)
	engine.Start(context.Background())

	rec := core.NewTelemetryRecorder(sq, geo.NewTrack(10), nil, nil)
	tr := tracker.New()
	frame := geo.LocalFrame{Home: geo.Point{Lat: 51.5033, Lon: -0.1195}, Alt: 320, Unit: 1}

	var s Sender
	var status core.LinkStatus
	if sender != nil {
		s, status = sender, sender
	}

	env := &testEnv{
		store:    ps,
		clock:    clock,
		engine:   engine,
		rec:      rec,
		sqlite:   sq,
		sender:   sender,
		tracker:  tr,
		prov:     prov,
		shutdown: make(chan struct{}, 1),
	}
	env.mux = NewMux(Handlers{
		Paths:     NewPathsHandler(ps),
		Spline:    NewSplineHandler(ps, engine),
		Playback:  NewPlaybackHandler(clock),
		Telemetry: NewTelemetryHandler(rec, status, sq, ps, frame),
		Link:      NewLinkHandler(s, ps, "mock"),
		Stats:     NewStatsHandler(tr),
		Settings:  NewSettingsHandler(prov, engine),
	}, func() { env.shutdown <- struct{}{} })
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&v), w.Body.String())
	return v
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestServer_Version(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/api/version", "")
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[version.Info](t, w)
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestServer_LatestLog(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "GET", "/api/log/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Contains(t, body, "log")
	assert.Contains(t, body, "event")
	assert.NotContains(t, body, "recent")

	_, _ = logging.GlobalLogCapture.Write([]byte(`time=2026-01-18T06:50:46Z level=INFO msg="API: test line" n=1` + "\n"))
	w = env.do(t, "GET", "/api/log/latest?lines=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[LatestLogResponse](t, w)
	assert.Equal(t, []string{"06:50:46 API: test line (n=1)"}, resp.Recent)

	w = env.do(t, "GET", "/api/log/latest?lines=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Shutdown(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "POST", "/api/shutdown", "")
	assert.Equal(t, http.StatusOK, w.Code)
	select {
	case <-env.shutdown:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown func not called")
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, "DELETE", "/api/spline", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{pathstore.ErrInvalidInput, http.StatusBadRequest},
		{pathstore.ErrIndexOutOfRange, http.StatusBadRequest},
		{pathstore.ErrNotFound, http.StatusNotFound},
		{pathstore.ErrDuplicateName, http.StatusConflict},
		{pathstore.ErrLastPathProtected, http.StatusConflict},
		{link.ErrTransport, http.StatusBadGateway},
		{errNoLink, http.StatusServiceUnavailable},
		{pathstore.ErrPersistence, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
