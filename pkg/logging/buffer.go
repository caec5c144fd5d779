package logging

import (
	"bytes"
	"strings"
	"sync"
)

// captureLines is how many lines the global captures keep.
const captureLines = 50

// LogCaptureWriter is a thread-safe writer that keeps the most recent lines
// in a ring. Trailing newlines are stripped.
type LogCaptureWriter struct {
	mu    sync.RWMutex
	lines []string
	next  int
	count int
}

// NewLogCaptureWriter keeps up to n lines. n < 1 keeps one.
func NewLogCaptureWriter(n int) *LogCaptureWriter {
	if n < 1 {
		n = 1
	}
	return &LogCaptureWriter{lines: make([]string, n)}
}

// GlobalLogCapture holds the latest INFO+ lines of the server log.
var GlobalLogCapture = NewLogCaptureWriter(captureLines)

// GlobalEventCapture holds the latest link and path events.
var GlobalEventCapture = NewLogCaptureWriter(captureLines)

// Write implements io.Writer. Each non-empty line in p becomes one entry.
func (w *LogCaptureWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, line := range bytes.Split(p, []byte{'\n'}) {
		s := strings.TrimRight(string(line), "\r")
		if s == "" {
			continue
		}
		w.lines[w.next] = s
		w.next = (w.next + 1) % len(w.lines)
		if w.count < len(w.lines) {
			w.count++
		}
	}
	return len(p), nil
}

// GetLastLine returns the most recent line, or "" if none was written.
func (w *LogCaptureWriter) GetLastLine() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.count == 0 {
		return ""
	}
	return w.lines[(w.next-1+len(w.lines))%len(w.lines)]
}

// Recent returns up to n lines, oldest first.
func (w *LogCaptureWriter) Recent(n int) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if n > w.count {
		n = w.count
	}
	if n <= 0 {
		return []string{}
	}
	out := make([]string, n)
	start := w.next - n
	for i := range out {
		out[i] = w.lines[(start+i+len(w.lines))%len(w.lines)]
	}
	return out
}
