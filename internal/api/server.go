package api

import (
	"log/slog"
	"net/http"
	"time"

	"pathplanner/pkg/version"
)

// Handlers bundles everything the server routes to. Stream may be nil.
type Handlers struct {
	Paths     *PathsHandler
	Spline    *SplineHandler
	Playback  *PlaybackHandler
	Telemetry *TelemetryHandler
	Link      *LinkHandler
	Stats     *StatsHandler
	Settings  *SettingsHandler
	Stream    *Hub
}

// NewServer creates and configures the HTTP server.
// shutdown is called asynchronously by POST /api/shutdown.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewMux(h, shutdown),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewMux registers all routes.
func NewMux(h Handlers, shutdown func()) *http.ServeMux {
	mux := http.NewServeMux()

	// 1. Health & meta
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// 2. Paths
	mux.HandleFunc("GET /api/paths", h.Paths.HandleList)
	mux.HandleFunc("POST /api/paths", h.Paths.HandleCreate)
	mux.HandleFunc("GET /api/paths/active", h.Paths.HandleActive)
	mux.HandleFunc("GET /api/paths/{name}", h.Paths.HandleGet)
	mux.HandleFunc("DELETE /api/paths/{name}", h.Paths.HandleDelete)
	mux.HandleFunc("POST /api/paths/{name}/select", h.Paths.HandleSelect)
	mux.HandleFunc("POST /api/paths/{name}/rename", h.Paths.HandleRename)

	// 2b. Waypoints
	mux.HandleFunc("POST /api/paths/{name}/waypoints", h.Paths.HandleAddWaypoint)
	mux.HandleFunc("DELETE /api/paths/{name}/waypoints", h.Paths.HandleClearWaypoints)
	mux.HandleFunc("PUT /api/paths/{name}/waypoints/{index}", h.Paths.HandleUpdateWaypoint)
	mux.HandleFunc("DELETE /api/paths/{name}/waypoints/{index}", h.Paths.HandleRemoveWaypoint)
	mux.HandleFunc("POST /api/paths/{name}/waypoints/{index}/move", h.Paths.HandleMoveWaypoint)

	// 2c. CSV interchange
	mux.HandleFunc("GET /api/paths/{name}/csv", h.Paths.HandleExportCSV)
	mux.HandleFunc("PUT /api/paths/{name}/csv", h.Paths.HandleImportCSV)

	// 3. Trajectory & playback
	mux.HandleFunc("GET /api/spline", h.Spline.HandleSpline)
	mux.HandleFunc("GET /api/playback", h.Playback.HandleGet)
	mux.HandleFunc("POST /api/playback/{action}", h.Playback.HandleAction)

	// 4. Vehicle link
	mux.HandleFunc("GET /api/telemetry", h.Telemetry.HandleTelemetry)
	mux.HandleFunc("GET /api/telemetry/track", h.Telemetry.HandleTrack)
	mux.HandleFunc("GET /api/telemetry/history", h.Telemetry.HandleHistory)
	mux.HandleFunc("GET /api/link", h.Link.HandleStatus)
	mux.HandleFunc("POST /api/link/waypoints", h.Link.HandleSendWaypoints)
	mux.HandleFunc("POST /api/link/move", h.Link.HandleSendMove)

	// 5. Stats & settings
	mux.Handle("GET /api/stats", h.Stats)
	mux.HandleFunc("GET /api/settings", h.Settings.HandleGet)
	mux.HandleFunc("PUT /api/settings", h.Settings.HandleSet)
	mux.HandleFunc("DELETE /api/settings/{key}", h.Settings.HandleReset)

	// 6. Stream
	if h.Stream != nil {
		mux.Handle("GET /api/stream", h.Stream)
	}

	// 7. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}
