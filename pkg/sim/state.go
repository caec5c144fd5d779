// Package sim turns a spline sample into a playable, looping timeline.
package sim

// State represents the playback state of a Clock.
type State string

const (
	// StateStopped holds index 0 without advancing.
	StateStopped State = "stopped"
	// StatePlaying advances one sample per tick.
	StatePlaying State = "playing"
	// StatePaused freezes the index; the timeline can be scrubbed.
	StatePaused State = "paused"
)

// ParseAction maps a playback action name onto the Clock method it drives.
// Valid names are start, pause, resume, toggle and stop.
func ParseAction(name string) (func(*Clock), bool) {
	switch name {
	case "start", "replay":
		return (*Clock).Start, true
	case "pause":
		return (*Clock).Pause, true
	case "resume":
		return (*Clock).Resume, true
	case "toggle":
		return (*Clock).Toggle, true
	case "stop":
		return (*Clock).Stop, true
	}
	return nil, false
}
