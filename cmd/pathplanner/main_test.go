package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathplanner/pkg/config"
	"pathplanner/pkg/core"
	"pathplanner/pkg/link"
	"pathplanner/pkg/link/mockvehicle"
	"pathplanner/pkg/model"
	"pathplanner/pkg/pathstore"
	"pathplanner/pkg/sim"
	"pathplanner/pkg/tracker"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "pathplanner_test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		backend  string
		linkOpts string
	}{
		{"MockLinkFileBackend", "mock", "file", ""},
		{"NoLinkSQLiteBackend", "none", "sqlite", ""},
		// A missing port leaves the planner running without a vehicle.
		{"SerialPortMissing", "serial", "file", "port: /dev/does-not-exist"},
		{"TCPRefused", "tcp", "sqlite", "address: 127.0.0.1:1\n    dial_retries: 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := fmt.Sprintf(`
server:
    address: localhost:0  # 0 lets OS choose free port
log:
    server:
        path: %[1]s/server.log
        level: debug
    requests:
        path: %[1]s/requests.log
    events:
        path: %[1]s/events.log
db:
    path: %[1]s/test.db
paths:
    backend: %[2]s
    file: %[1]s/paths.json
    import_dirs: ["%[1]s"]
link:
    provider: %[3]s
    record_telemetry: true
    %[4]s
mock:
    step_duration: 5ms
    telemetry_interval: 10ms
`, filepath.ToSlash(dir), tt.backend, tt.provider, tt.linkOpts)
			path := writeConfig(t, dir, cfg)

			// Cancel quickly to verify the startup sequence
			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()

			if err := run(ctx, path); err != nil {
				t.Fatalf("run() failed: %v", err)
			}
			if _, err := os.Stat(filepath.Join(dir, "server.log")); err != nil {
				t.Errorf("expected server log to be written: %v", err)
			}
			if tt.linkOpts != "" {
				data, err := os.ReadFile(filepath.Join(dir, "events.log"))
				require.NoError(t, err)
				assert.Contains(t, string(data), "[disconnect] Link unavailable - "+tt.provider)
			}
		})
	}
}

func TestRun_BadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "link:\n  provider: carrier-pigeon\n")
	err := run(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestInitPathStore(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantActive string
		wantNames  int
	}{
		{"Missing", "", "Path 1", 1},
		{"Corrupt", "{not json", "Path 1", 1},
		{"Saved", `{"Survey":[{"x":0,"y":1,"z":2}],"Return":[]}`, "Survey", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := filepath.Join(t.TempDir(), "paths.json")
			if tt.content != "" {
				require.NoError(t, os.WriteFile(file, []byte(tt.content), 0o644))
			}
			cfg := config.DefaultConfig()
			cfg.Paths.File = file

			ps := initPathStore(context.Background(), cfg, nil)
			assert.Equal(t, tt.wantActive, ps.ActiveName())
			assert.Len(t, ps.Names(), tt.wantNames)
		})
	}
}

func TestInitLink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.DefaultConfig()
	prov := config.NewProvider(cfg, nil)
	engine := core.NewEngine(pathstore.New(nil, true), sim.NewClock(sim.DefaultStep), prov)

	t.Run("None", func(t *testing.T) {
		c := *cfg
		c.Link.Provider = "none"
		lnk, cleanup, err := initLink(ctx, &c, prov, engine, tracker.New())
		require.NoError(t, err)
		defer cleanup()
		assert.Nil(t, lnk)
	})

	t.Run("Mock", func(t *testing.T) {
		c := *cfg
		c.Mock.StepDuration = config.Duration(5 * time.Millisecond)
		c.Mock.TelemetryInterval = config.Duration(10 * time.Millisecond)
		tr := tracker.New()
		lnk, cleanup, err := initLink(ctx, &c, prov, engine, tr)
		require.NoError(t, err)
		defer cleanup()
		defer lnk.Close()

		require.NoError(t, lnk.Start(ctx))
		assert.Eventually(t, func() bool { return lnk.Summary().Frames > 0 }, 2*time.Second, 10*time.Millisecond)
		require.NoError(t, lnk.SendWaypoints(model.DefaultPath()))
		assert.Equal(t, int64(1), tr.Snapshot()["mock"].CommandsSent)
	})

	t.Run("TCP", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		v := mockvehicle.New(mockvehicle.Config{
			Frame:             homeFrame(ctx, prov),
			StepDuration:      5 * time.Millisecond,
			TelemetryInterval: 10 * time.Millisecond,
		})
		defer v.Close()
		go func() {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = v.Serve(conn)
		}()

		c := *cfg
		c.Link.Provider = "tcp"
		c.Link.Address = ln.Addr().String()
		lnk, cleanup, err := initLink(ctx, &c, prov, engine, tracker.New())
		require.NoError(t, err)
		defer cleanup()
		defer lnk.Close()

		require.NoError(t, lnk.Start(ctx))
		assert.Eventually(t, func() bool { return lnk.Summary().Frames > 0 }, 2*time.Second, 10*time.Millisecond)
		assert.True(t, strings.Contains(lnk.Summary().GPS, ","), "got GPS %q", lnk.Summary().GPS)
	})

	t.Run("TCPRefused", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		ln.Close()

		c := *cfg
		c.Link.Provider = "tcp"
		c.Link.Address = addr
		c.Link.DialRetries = 0
		_, _, err = initLink(ctx, &c, prov, engine, tracker.New())
		assert.ErrorIs(t, err, link.ErrTransport)
	})
}

func TestStartupProbes(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Link.Provider = "serial"
	cfg.Link.Geofences = []string{"zones.geojson"}
	cfg.Paths.File = "/tmp/paths.json"

	var names []string
	for _, p := range startupProbes(cfg, nil) {
		names = append(names, p.Name)
		if p.Name != "Database" {
			assert.False(t, p.Critical, p.Name)
		}
	}
	assert.Equal(t, []string{"Database", "Log Directory", "Paths Directory", "Geofences", "Serial Port"}, names)
}
