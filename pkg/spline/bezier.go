package spline

import "pathplanner/pkg/model"

// Bezier samples the single Bézier curve whose control points are wps,
// evaluating steps+1 uniformly spaced parameters over [0,1] (both ends
// included) with De Casteljau's algorithm.
//
// Every sample costs O(N²), so this is only sensible for short lists.
// Fewer than two control points yield an empty result.
func Bezier(wps []model.Waypoint, steps int) []model.Waypoint {
	if len(wps) < 2 {
		return []model.Waypoint{}
	}
	if steps < 1 {
		steps = 1
	}

	out := make([]model.Waypoint, 0, steps+1)
	scratch := make([]model.Waypoint, len(wps))
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		out = append(out, deCasteljau(wps, scratch, t))
	}
	return out
}

// deCasteljau reduces the control polygon one degree per pass until a single
// point remains. scratch must be at least len(pts) long.
func deCasteljau(pts, scratch []model.Waypoint, t float64) model.Waypoint {
	n := copy(scratch, pts)
	for ; n > 1; n-- {
		for i := 0; i < n-1; i++ {
			scratch[i] = scratch[i].Lerp(scratch[i+1], t)
		}
	}
	return scratch[0]
}
