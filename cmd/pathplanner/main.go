package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pathplanner/internal/api"
	"pathplanner/pkg/config"
	"pathplanner/pkg/core"
	"pathplanner/pkg/db"
	"pathplanner/pkg/geo"
	"pathplanner/pkg/link"
	"pathplanner/pkg/link/serialport"
	"pathplanner/pkg/logging"
	"pathplanner/pkg/pathstore"
	"pathplanner/pkg/probe"
	"pathplanner/pkg/sim"
	"pathplanner/pkg/store"
	"pathplanner/pkg/tracker"
	"pathplanner/pkg/version"
	"pathplanner/pkg/watcher"
)

const defaultConfigPath = "configs/pathplanner.yaml"

var (
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	listPorts  = flag.Bool("list-ports", false, "List serial ports and exit")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
	}

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if *listPorts {
		ports, err := serialport.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list serial ports: %v\n", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("PathPlanner Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	prov := config.NewProvider(appCfg, st)
	logging.SetTrace(prov.Trace(ctx))

	paths := initPathStore(ctx, appCfg, st)

	clock := sim.NewClock(appCfg.Sim.StepDuration.Std())
	engine := core.NewEngine(paths, clock, prov)
	engine.Start(ctx)

	tr := tracker.New()
	frame := homeFrame(ctx, prov)

	var lnk *link.Link
	hub := api.NewHub(func() link.Summary {
		if lnk == nil {
			return link.EmptySummary()
		}
		return lnk.Summary()
	})
	paths.Subscribe(hub.OnPathChange)

	fences, err := geo.NewFenceService(appCfg.Link.Geofences...)
	if err != nil {
		return fmt.Errorf("failed to load geofences: %w", err)
	}
	var history store.TelemetryStore
	if appCfg.Link.RecordTelemetry {
		history = st
	}
	rec := core.NewTelemetryRecorder(history, geo.NewTrack(appCfg.Link.TrackSize), fences, hub)

	lnk, stopLink, err := initLink(ctx, appCfg, prov, engine, tr)
	defer stopLink()
	if err != nil {
		// Planning and playback keep working; the link endpoints report 503.
		slog.Error("Link unavailable, continuing without vehicle", "provider", appCfg.Link.Provider, "error", err)
		logging.LogEvent(logging.Event{
			Timestamp: time.Now(),
			Type:      logging.EventDisconnect,
			Title:     "Link unavailable",
			Summary:   fmt.Sprintf("%s: %v", appCfg.Link.Provider, err),
		})
		lnk = nil
	}

	var sender api.Sender
	var status core.LinkStatus
	if lnk != nil {
		defer lnk.Close()
		lnk.SetObserver(rec)
		if err := lnk.Start(ctx); err != nil {
			return fmt.Errorf("failed to start link: %w", err)
		}
		go watchLink(lnk, appCfg.Link.Provider)
		sender, status = lnk, lnk
	}

	sched := core.NewScheduler(clock, hub)
	sched.AddJob(core.NewStatusJob(appCfg.Jobs.StatusInterval.Std(), status, tr))
	sched.AddJob(core.NewPruneJob(appCfg.Jobs.PruneInterval.Std(), appCfg.Jobs.TelemetryRetention.Std(), st))
	if len(appCfg.Paths.ImportDirs) > 0 {
		importWatcher, err := watcher.NewService(appCfg.Paths.ImportDirs, ".csv")
		if err != nil {
			slog.Warn("Failed to initialize import watcher", "error", err)
		} else {
			slog.Info("Import watcher started", "paths", importWatcher.Paths())
			sched.AddJob(core.NewImportJob(appCfg.Jobs.ImportInterval.Std(), importWatcher, paths))
		}
	}
	go hub.Run(ctx)
	go sched.Start(ctx)

	persistenceJob := core.NewPlaybackPersistenceJob(st, clock, engine)
	if !persistenceJob.Restore(ctx) && prov.Autoplay(ctx) {
		clock.Start()
	}
	persistenceJob.Start(ctx)

	results := probe.Run(ctx, startupProbes(appCfg, dbConn))
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(appCfg.Server.Address, api.Handlers{
		Paths:     api.NewPathsHandler(paths),
		Spline:    api.NewSplineHandler(paths, engine),
		Playback:  api.NewPlaybackHandler(clock),
		Telemetry: api.NewTelemetryHandler(rec, status, st, paths, frame),
		Link:      api.NewLinkHandler(sender, paths, appCfg.Link.Provider),
		Stats:     api.NewStatsHandler(tr),
		Settings:  api.NewSettingsHandler(prov, engine),
		Stream:    hub,
	}, shutdownFunc)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func initDB(appCfg *config.Config) (*db.DB, *store.SQLiteStore, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// initPathStore picks the persistence backend and loads saved paths. A
// corrupt snapshot is logged and the defaults are kept.
func initPathStore(ctx context.Context, cfg *config.Config, st store.StateStore) *pathstore.Store {
	var persister pathstore.Persister
	switch cfg.Paths.Backend {
	case "sqlite":
		persister = pathstore.NewStatePersister(st)
	default:
		file := cfg.Paths.File
		if file == "" {
			file = pathstore.DefaultFile()
		}
		persister = pathstore.NewFilePersister(file)
	}

	ps := pathstore.New(persister, cfg.Paths.SeedDefault)
	if err := ps.Load(ctx); err != nil {
		slog.Warn("Starting with default paths", "backend", cfg.Paths.Backend, "error", err)
	}
	return ps
}

func homeFrame(ctx context.Context, prov *config.UnifiedProvider) geo.LocalFrame {
	return geo.LocalFrame{
		Home: geo.Point{Lat: prov.MockHomeLat(ctx), Lon: prov.MockHomeLon(ctx)},
		Alt:  prov.MockHomeAlt(ctx),
		Unit: prov.AppConfig().Mock.UnitDistance.Meters(),
	}
}

func startupProbes(cfg *config.Config, dbConn *db.DB) []probe.Probe {
	probes := []probe.Probe{
		{
			Name:     "Database",
			Check:    probe.Database(dbConn),
			Critical: true,
		},
		{
			Name:     "Log Directory",
			Check:    probe.WritableDir(cfg.Log.Server.Path),
			Critical: false,
		},
	}
	if cfg.Paths.Backend == "file" && cfg.Paths.File != "" {
		probes = append(probes, probe.Probe{
			Name:     "Paths Directory",
			Check:    probe.WritableDir(cfg.Paths.File),
			Critical: false,
		})
	}
	if len(cfg.Link.Geofences) > 0 {
		probes = append(probes, probe.Probe{
			Name:     "Geofences",
			Check:    probe.FilesReadable(cfg.Link.Geofences...),
			Critical: false,
		})
	}
	if cfg.Link.Provider == "serial" {
		probes = append(probes, probe.Probe{
			Name:     "Serial Port",
			Check:    probe.SerialPort(cfg.Link.Port, serialport.List),
			Critical: false,
		})
	}
	return probes
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
