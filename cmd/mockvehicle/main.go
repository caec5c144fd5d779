// Command mockvehicle serves a simulated vehicle over TCP so the planner
// can be run against it with link.provider: tcp.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/net/netutil"

	"pathplanner/pkg/config"
	"pathplanner/pkg/geo"
	"pathplanner/pkg/link/mockvehicle"
	"pathplanner/pkg/spline"
)

func main() {
	configPath := flag.String("config", "configs/pathplanner.yaml", "Config file supplying the mock section")
	listen := flag.String("listen", "", "Address to listen on (default: link.address from config)")
	garbage := flag.Float64("garbage", -1, "Override mock.garbage_rate")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *garbage >= 0 {
		cfg.Mock.GarbageRate = *garbage
	}
	addr := *listen
	if addr == "" {
		addr = cfg.Link.Address
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to listen on %s: %v\n", addr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, ln, vehicleConfig(cfg)); err != nil {
		fmt.Fprintf(os.Stderr, "Mock vehicle failed: %v\n", err)
		os.Exit(1)
	}
}

func vehicleConfig(cfg *config.Config) mockvehicle.Config {
	alg, err := spline.ParseAlgorithm(cfg.Spline.Algorithm)
	if err != nil {
		alg = spline.AlgorithmCatmullRom
	}
	steps := cfg.Spline.CatmullSteps
	if alg == spline.AlgorithmBezier {
		steps = cfg.Spline.BezierSteps
	}
	return mockvehicle.Config{
		Frame: geo.LocalFrame{
			Home: geo.Point{Lat: cfg.Mock.HomeLat, Lon: cfg.Mock.HomeLon},
			Alt:  cfg.Mock.HomeAlt,
			Unit: cfg.Mock.UnitDistance.Meters(),
		},
		StepDuration:      cfg.Mock.StepDuration.Std(),
		TelemetryInterval: cfg.Mock.TelemetryInterval.Std(),
		GarbageRate:       cfg.Mock.GarbageRate,
		Spline:            spline.NewGenerator(alg, steps),
	}
}

// serve accepts connections until ctx is cancelled. One vehicle keeps its
// state across reconnects; a second peer waits until the first hangs up.
func serve(ctx context.Context, ln net.Listener, vcfg mockvehicle.Config) error {
	v := mockvehicle.New(vcfg)
	ln = netutil.LimitListener(ln, 1)
	go func() {
		<-ctx.Done()
		_ = ln.Close()
		_ = v.Close()
	}()

	slog.Info("MockVehicle: listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				st := v.Stats()
				slog.Info("MockVehicle: stopped", "commands", st.CommandsReceived, "frames", st.FramesSent)
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		peer := conn.RemoteAddr().String()
		slog.Info("MockVehicle: peer connected", "peer", peer)
		go func() {
			if err := v.Serve(conn); err != nil {
				slog.Warn("MockVehicle: session ended", "peer", peer, "error", err)
			}
		}()
	}
}
