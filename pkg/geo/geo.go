// Package geo holds the geodesy used to place local waypoints on the globe
// and to summarise recorded vehicle tracks.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"

	"pathplanner/pkg/model"
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

func (p Point) toOrb() orb.Point { return orb.Point{p.Lon, p.Lat} }

func fromOrb(p orb.Point) Point { return Point{Lat: p.Lat(), Lon: p.Lon()} }

// Distance returns the great-circle distance between two points in meters.
func Distance(p1, p2 Point) float64 {
	return orbgeo.DistanceHaversine(p1.toOrb(), p2.toOrb())
}

// DestinationPoint returns the point distMeters away from start along the
// given compass bearing in degrees.
func DestinationPoint(start Point, distMeters, bearing float64) Point {
	return fromOrb(orbgeo.PointAtBearingAndDistance(start.toOrb(), bearing, distMeters))
}

// Bearing returns the initial compass bearing from p1 to p2 in [0, 360).
func Bearing(p1, p2 Point) float64 {
	return math.Mod(orbgeo.Bearing(p1.toOrb(), p2.toOrb())+360, 360)
}

// NormalizeAngle folds an angle difference into [-180, 180].
func NormalizeAngle(angleDeg float64) float64 {
	return math.Remainder(angleDeg, 360)
}

// TurnToward rotates heading toward target by at most maxStep degrees the
// short way round and returns a compass heading in [0, 360).
func TurnToward(heading, target, maxStep float64) float64 {
	delta := NormalizeAngle(target - heading)
	if maxStep >= 0 {
		delta = math.Max(-maxStep, math.Min(maxStep, delta))
	}
	return math.Mod(heading+delta+360, 360)
}

// LocalFrame anchors the planner's local coordinates at a home point.
// X grows east, Z grows north and Y is height above Alt. Unit is the
// length of one local unit in metres.
type LocalFrame struct {
	Home Point
	Alt  float64
	Unit float64
}

func (f LocalFrame) unit() float64 {
	if f.Unit <= 0 {
		return 1
	}
	return f.Unit
}

// ToGeo places a local waypoint on the globe and returns its altitude.
func (f LocalFrame) ToGeo(wp model.Waypoint) (Point, float64) {
	u := f.unit()
	alt := f.Alt + wp.Y*u
	east, north := wp.X*u, wp.Z*u
	dist := math.Hypot(east, north)
	if dist == 0 {
		return f.Home, alt
	}
	brng := math.Atan2(east, north) * (180 / math.Pi)
	return DestinationPoint(f.Home, dist, brng), alt
}

// ToLocal is the inverse of ToGeo.
func (f LocalFrame) ToLocal(p Point, alt float64) model.Waypoint {
	u := f.unit()
	dist := Distance(f.Home, p)
	if dist == 0 {
		return model.WP(0, (alt-f.Alt)/u, 0)
	}
	brng := Bearing(f.Home, p) * (math.Pi / 180)
	return model.WP(dist*math.Sin(brng)/u, (alt-f.Alt)/u, dist*math.Cos(brng)/u)
}
