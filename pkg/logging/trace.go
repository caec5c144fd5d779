package logging

import (
	"log/slog"
	"sync/atomic"
)

// traceEnabled gates raw link traffic logs. Off by default to reduce noise.
var traceEnabled atomic.Bool

// SetTrace turns trace logging on or off. Safe to call at runtime.
func SetTrace(on bool) {
	traceEnabled.Store(on)
}

// TraceEnabled reports whether trace logging is on.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// Trace logs a message at DEBUG level, but only if tracing is enabled.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if traceEnabled.Load() {
		logger.Debug(msg, args...)
	}
}

// TraceDefault logs to the default logger if tracing is enabled.
func TraceDefault(msg string, args ...any) {
	if traceEnabled.Load() {
		slog.Debug(msg, args...)
	}
}
