package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pathplanner/pkg/config"
	"pathplanner/pkg/core"
	"pathplanner/pkg/link"
	"pathplanner/pkg/link/mockvehicle"
	"pathplanner/pkg/link/serialport"
	"pathplanner/pkg/logging"
	"pathplanner/pkg/tracker"
)

const dialTimeout = 5 * time.Second

// initLink opens the transport named by link.provider. It returns a nil
// link for "none". The cleanup func releases anything started alongside
// the link, such as the in-process mock vehicle.
func initLink(ctx context.Context, cfg *config.Config, prov *config.UnifiedProvider, engine *core.Engine, tr *tracker.Tracker) (*link.Link, func(), error) {
	var (
		t       link.Transport
		target  string
		cleanup = func() {}
	)

	switch cfg.Link.Provider {
	case "none":
		slog.Info("Link Source: None")
		return nil, cleanup, nil
	case "serial":
		port, err := serialport.Open(serialport.Config{Port: cfg.Link.Port, BaudRate: cfg.Link.Baud})
		if err != nil {
			return nil, cleanup, err
		}
		t, target = port, cfg.Link.Port
	case "tcp":
		conn, err := link.DialTCP(ctx, cfg.Link.Address, link.DialConfig{
			Timeout: dialTimeout,
			Retries: cfg.Link.DialRetries,
		})
		if err != nil {
			return nil, cleanup, err
		}
		t, target = conn, cfg.Link.Address
	default:
		v, conn := mockvehicle.Pipe(mockvehicle.Config{
			Frame:             homeFrame(ctx, prov),
			StepDuration:      cfg.Mock.StepDuration.Std(),
			TelemetryInterval: cfg.Mock.TelemetryInterval.Std(),
			GarbageRate:       cfg.Mock.GarbageRate,
			Spline:            engine.Generator(ctx),
		})
		t, target = conn, "in-process"
		cleanup = func() { _ = v.Close() }
	}

	slog.Info("Link Source", "provider", cfg.Link.Provider, "target", target)
	lnk := link.New(t, link.Options{
		Channel:     cfg.Link.Provider,
		EventBuffer: cfg.Link.EventBuffer,
		Tracker:     tr,
	})
	logging.LogEvent(logging.Event{
		Timestamp: time.Now(),
		Type:      logging.EventConnect,
		Title:     "Link connected",
		Summary:   fmt.Sprintf("%s %s", cfg.Link.Provider, target),
	})
	return lnk, cleanup, nil
}

// watchLink records the end of a started link's receive loop in the event
// log.
func watchLink(lnk *link.Link, provider string) {
	<-lnk.Done()
	summary := provider
	if err := lnk.Wait(); err != nil {
		summary = fmt.Sprintf("%s: %v", provider, err)
	}
	logging.LogEvent(logging.Event{
		Timestamp: time.Now(),
		Type:      logging.EventDisconnect,
		Title:     "Link closed",
		Summary:   summary,
	})
}
