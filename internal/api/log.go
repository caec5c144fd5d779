package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"pathplanner/pkg/logging"
	"pathplanner/pkg/pathstore"
)

// key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// maxParamLen drops long values such as session IDs from the status line.
const maxParamLen = 20

// LatestLogResponse is the status bar payload.
type LatestLogResponse struct {
	Log    string   `json:"log"`
	Level  string   `json:"level,omitempty"`
	Event  string   `json:"event"`
	Recent []string `json:"recent,omitempty"`
}

// maxRecentLines caps ?lines= on /api/log/latest.
const maxRecentLines = 50

type logEntry struct {
	clock  string
	level  string
	msg    string
	params []string
}

// parseLogLine splits a slog text line. ok is false when the line carries
// no msg attribute.
func parseLogLine(raw string) (e logEntry, ok bool) {
	for _, m := range logRegex.FindAllStringSubmatch(raw, -1) {
		key, val := m[1], m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				e.clock = t.Format("15:04:05")
			}
		case "level":
			e.level = val
		case "msg":
			e.msg = val
		default:
			if len(val) <= maxParamLen {
				e.params = append(e.params, key+"="+val)
			}
		}
	}
	sort.Strings(e.params)
	return e, e.msg != ""
}

// String renders HH:MM:SS Msg (key=value, ...).
func (e logEntry) String() string {
	var b strings.Builder
	if e.clock != "" {
		b.WriteString(e.clock)
		b.WriteByte(' ')
	}
	b.WriteString(e.msg)
	if len(e.params) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.params, ", "))
		b.WriteByte(')')
	}
	return b.String()
}

// formatLogLine condenses a raw log line for the status bar. Lines that do
// not parse are returned unchanged.
func formatLogLine(raw string) string {
	e, ok := parseLogLine(raw)
	if !ok {
		return raw
	}
	return e.String()
}

// handleLatestLog returns the last captured log line and the last link or
// path event. ?lines=n adds the n most recent log lines, oldest first.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	raw := logging.GlobalLogCapture.GetLastLine()
	resp := LatestLogResponse{
		Log:   raw,
		Event: strings.TrimSpace(logging.GlobalEventCapture.GetLastLine()),
	}
	if e, ok := parseLogLine(raw); ok {
		resp.Log, resp.Level = e.String(), e.level
	}
	if v := r.URL.Query().Get("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, fmt.Errorf("lines %q: %w", v, pathstore.ErrInvalidInput))
			return
		}
		for _, line := range logging.GlobalLogCapture.Recent(min(n, maxRecentLines)) {
			resp.Recent = append(resp.Recent, formatLogLine(line))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
