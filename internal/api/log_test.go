package api

import (
	"testing"
)

func TestFormatLogLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "SortsAndDropsLongValues",
			input: `time=2026-01-18T06:50:46.074+01:00 level=INFO msg="Engine: sample replaced" samples="81 " path="Path 1" algorithm=catmull-rom waypoints=3 session=0f8e2a4c-1b7d-4c55-9a3e-6f1d2b9c8e70`,
			want:  "06:50:46 Engine: sample replaced (algorithm=catmull-rom, path=Path 1, samples=81, waypoints=3)",
		},
		{
			name:  "NoParams",
			input: `time=2026-01-18T06:50:46Z level=INFO msg="Scheduler started"`,
			want:  "06:50:46 Scheduler started",
		},
		{
			name:  "NoTime",
			input: `level=WARN msg="Link: dial failed, retrying" attempt=2`,
			want:  "Link: dial failed, retrying (attempt=2)",
		},
		{
			name:  "NotStructured",
			input: "plain text line",
			want:  "plain text line",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatLogLine(tt.input); got != tt.want {
				t.Errorf("formatLogLine() = '%s', want '%s'", got, tt.want)
			}
		})
	}
}

func TestParseLogLine_Level(t *testing.T) {
	e, ok := parseLogLine(`level=ERROR msg="API: request failed" status=500`)
	if !ok {
		t.Fatal("expected line to parse")
	}
	if e.level != "ERROR" {
		t.Errorf("level = %q, want ERROR", e.level)
	}
}
