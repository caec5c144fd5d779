// Package model holds the value types shared by the path store, the spline
// engine, the simulation clock and the serial link.
package model

import (
	"fmt"
	"math"
)

// Waypoint is a single 3D coordinate authored by the operator.
// It has no identity beyond its position in a path; equality is by value.
type Waypoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// WP is shorthand for constructing a Waypoint.
func WP(x, y, z float64) Waypoint {
	return Waypoint{X: x, Y: y, Z: z}
}

// Finite reports whether all three coordinates are finite numbers.
func (w Waypoint) Finite() bool {
	return !math.IsNaN(w.X) && !math.IsInf(w.X, 0) &&
		!math.IsNaN(w.Y) && !math.IsInf(w.Y, 0) &&
		!math.IsNaN(w.Z) && !math.IsInf(w.Z, 0)
}

// Lerp returns the point a fraction t of the way from w to o.
func (w Waypoint) Lerp(o Waypoint, t float64) Waypoint {
	return Waypoint{
		X: (1-t)*w.X + t*o.X,
		Y: (1-t)*w.Y + t*o.Y,
		Z: (1-t)*w.Z + t*o.Z,
	}
}

// Distance returns the euclidean distance between two waypoints.
func (w Waypoint) Distance(o Waypoint) float64 {
	dx, dy, dz := o.X-w.X, o.Y-w.Y, o.Z-w.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (w Waypoint) String() string {
	return fmt.Sprintf("(%g, %g, %g)", w.X, w.Y, w.Z)
}

// CloneWaypoints returns an independent copy of wps. A nil input yields an
// empty, non-nil slice so callers can marshal it as [].
func CloneWaypoints(wps []Waypoint) []Waypoint {
	out := make([]Waypoint, len(wps))
	copy(out, wps)
	return out
}

// DefaultPath is the path seeded into a fresh store.
func DefaultPath() []Waypoint {
	return []Waypoint{
		{X: -100, Y: 0, Z: -100},
		{X: 0, Y: 50, Z: 0},
		{X: 100, Y: 0, Z: 100},
	}
}
