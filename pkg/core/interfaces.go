package core

import (
	"pathplanner/pkg/link"
	"pathplanner/pkg/sim"
)

// FrameSink consumes playback frames produced by the Scheduler.
type FrameSink interface {
	UpdateFrame(f sim.Frame)
}

// TelemetrySink consumes telemetry frames relayed by the recorder.
type TelemetrySink interface {
	UpdateTelemetry(t link.Telemetry)
}

// LinkStatus exposes the dashboard view of a running link.
type LinkStatus interface {
	Summary() link.Summary
}
