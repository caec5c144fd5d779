package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event types written to the event log.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventSend       = "send"
	EventPath       = "path"
	EventZone       = "zone"
)

// Event is one line of the event log.
type Event struct {
	Timestamp time.Time
	Type      string
	Title     string
	Summary   string
}

// Line formats the event as [2006-01-02 15:04:05] [type] Title - Summary.
// A zero Timestamp means now.
func (e Event) Line() string {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	line := fmt.Sprintf("[%s] [%s] %s", ts.Format("2006-01-02 15:04:05"), e.Type, e.Title)
	if e.Summary != "" {
		line += " - " + e.Summary
	}
	return line
}

// EventLog appends events to a file and mirrors them into a capture.
type EventLog struct {
	mu      sync.Mutex
	path    string
	capture *LogCaptureWriter
}

var events = &EventLog{capture: GlobalEventCapture}

// SetPath changes the target file. An empty path disables the log.
func (l *EventLog) SetPath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.path = path
}

// Append writes one event. Failures are logged, never returned.
func (l *EventLog) Append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.path == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		slog.Error("failed to create event log directory", "error", err)
		return
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("failed to open event log", "error", err)
		return
	}
	defer f.Close()

	line := e.Line()
	if _, err := f.WriteString(line + "\n"); err != nil {
		slog.Error("failed to write event log", "error", err)
	}
	if l.capture != nil {
		_, _ = l.capture.Write([]byte(line))
	}
}

// SetEventLogPath configures the file LogEvent appends to.
func SetEventLogPath(path string) {
	events.SetPath(path)
}

// LogEvent appends a link or path event to the event log file.
func LogEvent(event Event) {
	events.Append(event)
}
