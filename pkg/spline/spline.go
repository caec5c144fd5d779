// Package spline turns an ordered waypoint list into a dense sequence of
// sampled points. Both algorithms are pure: the same input always yields the
// same output and nothing is retained between calls.
package spline

import (
	"fmt"
	"strings"

	"pathplanner/pkg/model"
)

// Algorithm selects the interpolation used by a Generator.
type Algorithm string

const (
	// AlgorithmCatmullRom is the piecewise Catmull-Rom spline. Preferred for
	// live editing and animation.
	AlgorithmCatmullRom Algorithm = "catmull-rom"
	// AlgorithmBezier treats the whole list as one Bézier curve.
	AlgorithmBezier Algorithm = "bezier"
)

// Default resolutions.
const (
	DefaultBezierSteps  = 100
	DefaultCatmullSteps = 40
)

// ParseAlgorithm maps a user supplied name onto an Algorithm.
// An empty string selects Catmull-Rom.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "catmull-rom", "catmullrom", "catmull":
		return AlgorithmCatmullRom, nil
	case "bezier", "bézier", "de-casteljau":
		return AlgorithmBezier, nil
	}
	return "", fmt.Errorf("unknown spline algorithm %q", s)
}

// Generator bundles an algorithm with its resolution. For Bézier, Steps is the
// number of intervals over [0,1]; for Catmull-Rom it is samples per segment.
type Generator struct {
	Algorithm Algorithm
	Steps     int
}

// NewGenerator returns a Generator, filling in the default resolution for
// the algorithm when steps is not positive.
func NewGenerator(alg Algorithm, steps int) Generator {
	if steps <= 0 {
		steps = DefaultCatmullSteps
		if alg == AlgorithmBezier {
			steps = DefaultBezierSteps
		}
	}
	return Generator{Algorithm: alg, Steps: steps}
}

// Sample runs the configured algorithm.
func (g Generator) Sample(wps []model.Waypoint) []model.Waypoint {
	if g.Algorithm == AlgorithmBezier {
		return Bezier(wps, g.Steps)
	}
	return CatmullRom(wps, g.Steps)
}

// Length returns the polyline arc length through the samples.
func Length(samples []model.Waypoint) float64 {
	var total float64
	for i := 1; i < len(samples); i++ {
		total += samples[i-1].Distance(samples[i])
	}
	return total
}
