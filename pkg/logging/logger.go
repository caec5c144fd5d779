package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pathplanner/pkg/config"
)

// RequestLogger is the logger instance for HTTP requests.
var RequestLogger *slog.Logger

// sink describes one log file and whether it also feeds the console and
// the status capture.
type sink struct {
	name     string
	settings config.LogSettings
	mirror   bool
}

// Init initializes the logging system based on configuration.
// It returns a cleanup function to close log files.
func Init(cfg *config.LogConfig) (func(), error) {
	rotatePaths(cfg.Server.Path, cfg.Requests.Path, cfg.Events.Path)
	SetEventLogPath(cfg.Events.Path)
	SetTrace(cfg.Trace)

	sinks := []sink{
		{name: "server", settings: cfg.Server, mirror: true},
		{name: "requests", settings: cfg.Requests},
	}

	var files []io.Closer
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	loggers := make([]*slog.Logger, len(sinks))
	for i, s := range sinks {
		h, f, err := newHandler(s)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to setup %s logger: %w", s.name, err)
		}
		files = append(files, f)
		loggers[i] = slog.New(h)
	}

	slog.SetDefault(loggers[0])
	RequestLogger = loggers[1]
	return closeAll, nil
}

func newHandler(s sink) (slog.Handler, *os.File, error) {
	if s.settings.Path == "" {
		return nil, nil, errors.New("no log path configured")
	}
	level := ParseLevel(s.settings.Level)

	if err := os.MkdirAll(filepath.Dir(s.settings.Path), 0o755); err != nil {
		return nil, nil, err
	}
	// Append mode; the previous run was rotated away by Init.
	file, err := os.OpenFile(s.settings.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})
	if !s.mirror {
		return fileHandler, file, nil
	}

	// Console and status capture only see INFO and up.
	return &multiHandler{handlers: []slog.Handler{
		fileHandler,
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: max(level, slog.LevelInfo)}),
		slog.NewTextHandler(GlobalLogCapture, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}}, file, nil
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR onto slog levels. Anything
// else is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// multiHandler fans a record out to every handler that accepts its level.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// nolint:gocritic // r must be passed by value to implement slog.Handler
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *multiHandler) each(fn func(slog.Handler) slog.Handler) *multiHandler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = fn(h)
	}
	return &multiHandler{handlers: out}
}

// rotatePaths renames existing log files to .old so every run starts fresh
// while keeping the previous one.
func rotatePaths(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		oldPath := p + ".old"
		_ = os.Remove(oldPath)
		_ = os.Rename(p, oldPath)
	}
}
