// Package link implements the newline-delimited JSON protocol spoken with the
// vehicle: telemetry in, waypoint and move commands out.
package link

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"pathplanner/pkg/model"
)

// Telemetry is one parsed inbound frame. Any of the four known fields may be
// nil, meaning unknown. Lat and Lon are either both set or both nil.
type Telemetry struct {
	Lat        *float64       `json:"lat,omitempty"`
	Lon        *float64       `json:"lon,omitempty"`
	Alt        *float64       `json:"alt,omitempty"`
	Heading    *float64       `json:"heading,omitempty"`
	Raw        map[string]any `json:"raw"`
	ReceivedAt time.Time      `json:"received_at"`
}

// HasPosition reports whether both lat and lon are known.
func (t Telemetry) HasPosition() bool {
	return t.Lat != nil && t.Lon != nil
}

// ParseTelemetry decodes one trimmed, non-empty line. Anything that is not a
// JSON object yields ErrProtocolParse. Known fields with non-numeric values
// are left unknown.
func ParseTelemetry(line []byte) (Telemetry, error) {
	var v any
	if err := json.Unmarshal(line, &v); err != nil {
		return Telemetry{}, fmt.Errorf("%w: %v", ErrProtocolParse, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return Telemetry{}, fmt.Errorf("%w: not a JSON object", ErrProtocolParse)
	}

	t := Telemetry{
		Raw:     obj,
		Alt:     number(obj, "alt"),
		Heading: number(obj, "heading"),
	}
	lat, lon := number(obj, "lat"), number(obj, "lon")
	if lat != nil && lon != nil {
		t.Lat, t.Lon = lat, lon
	}
	return t, nil
}

func number(obj map[string]any, key string) *float64 {
	f, ok := obj[key].(float64)
	if !ok {
		return nil
	}
	return &f
}

// Command is an outbound message. It is either a WaypointsCommand or a
// MoveCommand.
type Command interface {
	Name() string
}

// WaypointsCommand uploads a path.
type WaypointsCommand struct {
	Points []model.Waypoint
}

// Name returns the wire tag.
func (WaypointsCommand) Name() string { return "waypoints" }

// MoveCommand relays raw control values.
type MoveCommand struct {
	Roll     float64 `json:"roll"`
	Pitch    float64 `json:"pitch"`
	Yaw      float64 `json:"yaw"`
	Throttle float64 `json:"throttle"`
}

// Name returns the wire tag.
func (MoveCommand) Name() string { return "move" }

type waypointsWire struct {
	Cmd    string           `json:"cmd"`
	Points []model.Waypoint `json:"points"`
}

type moveWire struct {
	Cmd string `json:"cmd"`
	MoveCommand
}

// Encode frames a command as one JSON line terminated by '\n'.
func Encode(cmd Command) ([]byte, error) {
	var v any
	switch c := cmd.(type) {
	case WaypointsCommand:
		pts := c.Points
		if pts == nil {
			pts = []model.Waypoint{}
		}
		v = waypointsWire{Cmd: c.Name(), Points: pts}
	case *WaypointsCommand:
		return Encode(*c)
	case MoveCommand:
		v = moveWire{Cmd: c.Name(), MoveCommand: c}
	case *MoveCommand:
		return Encode(*c)
	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeCommand parses one outbound line. Used by the vehicle side.
func DecodeCommand(line []byte) (Command, error) {
	line = bytes.TrimSpace(line)
	var head struct {
		Cmd string `json:"cmd"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolParse, err)
	}
	switch head.Cmd {
	case "waypoints":
		var w waypointsWire
		if err := json.Unmarshal(line, &w); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocolParse, err)
		}
		return WaypointsCommand{Points: model.CloneWaypoints(w.Points)}, nil
	case "move":
		var m moveWire
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocolParse, err)
		}
		return m.MoveCommand, nil
	}
	return nil, fmt.Errorf("%w: unknown cmd %q", ErrProtocolParse, head.Cmd)
}

// Summary is the dashboard view of the latest telemetry.
type Summary struct {
	GPS         string    `json:"gps"`
	Altitude    string    `json:"altitude"`
	Heading     string    `json:"heading"`
	Frames      uint64    `json:"frames"`
	ParseErrors uint64    `json:"parse_errors"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EmptySummary is shown before any telemetry arrived.
func EmptySummary() Summary {
	return Summary{GPS: Unknown, Altitude: Unknown, Heading: Unknown}
}

// Unknown is displayed for fields that were absent.
const Unknown = "-"

// summarize formats t the way the dashboard shows it: "lat,lon", "320m",
// "45°", with "-" for anything unknown.
func summarize(t Telemetry) (gps, alt, heading string) {
	gps, alt, heading = Unknown, Unknown, Unknown
	if t.HasPosition() {
		gps = formatFloat(*t.Lat) + "," + formatFloat(*t.Lon)
	}
	if t.Alt != nil {
		alt = formatFloat(*t.Alt) + "m"
	}
	if t.Heading != nil {
		heading = formatFloat(*t.Heading) + "°"
	}
	return gps, alt, heading
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Lines renders the three dashboard rows.
func (s Summary) Lines() []string {
	return []string{"GPS: " + s.GPS, "Altitude: " + s.Altitude, "Heading: " + s.Heading}
}
