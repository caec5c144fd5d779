package pathstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"pathplanner/pkg/model"
)

// Path is a named, ordered waypoint list.
type Path struct {
	Name      string           `json:"name"`
	Waypoints []model.Waypoint `json:"waypoints"`
}

func (p Path) clone() Path {
	return Path{Name: p.Name, Waypoints: model.CloneWaypoints(p.Waypoints)}
}

// Snapshot is the full ordered name -> waypoints mapping of a store.
//
// On the wire it is a plain JSON object whose key order follows Paths.
// Active and Counter travel alongside it only for backends that can hold
// them separately; they are not part of the JSON document.
type Snapshot struct {
	Paths   []Path
	Active  string
	Counter int
}

// Len returns the number of paths.
func (s Snapshot) Len() int { return len(s.Paths) }

// Waypoints returns the waypoints stored under name.
func (s Snapshot) Waypoints(name string) ([]model.Waypoint, bool) {
	for _, p := range s.Paths {
		if p.Name == name {
			return p.Waypoints, true
		}
	}
	return nil, false
}

// MarshalJSON writes the paths as an object, preserving order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range s.Paths {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		wps := p.Waypoints
		if wps == nil {
			wps = []model.Waypoint{}
		}
		val, err := json.Marshal(wps)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of name -> [{x,y,z}...] keeping key order.
// Duplicate keys, non-array values and non-finite coordinates are rejected.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("snapshot must be a JSON object")
	}

	var paths []Path
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		if seen[name] {
			return fmt.Errorf("duplicate path %q", name)
		}
		seen[name] = true

		var wps []model.Waypoint
		if err := dec.Decode(&wps); err != nil {
			return fmt.Errorf("path %q: %w", name, err)
		}
		for i, wp := range wps {
			if !wp.Finite() {
				return fmt.Errorf("path %q waypoint %d: %w", name, i, ErrInvalidInput)
			}
		}
		paths = append(paths, Path{Name: name, Waypoints: model.CloneWaypoints(wps)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after snapshot")
	}

	s.Paths = paths
	return nil
}
