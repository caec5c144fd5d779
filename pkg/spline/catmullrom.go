package spline

import "pathplanner/pkg/model"

// CatmullRom samples a uniform Catmull-Rom spline through wps.
//
// The list is padded by repeating its first and last waypoint, each 4-point
// window contributes stepsPerSegment samples at t = s/stepsPerSegment
// (t=1 excluded), and the final waypoint is appended once so the result
// ends exactly on it. N waypoints yield (N-1)*stepsPerSegment+1 points.
// Fewer than two waypoints yield an empty result.
func CatmullRom(wps []model.Waypoint, stepsPerSegment int) []model.Waypoint {
	if len(wps) < 2 {
		return []model.Waypoint{}
	}
	if stepsPerSegment < 1 {
		stepsPerSegment = 1
	}

	pts := make([]model.Waypoint, 0, len(wps)+2)
	pts = append(pts, wps[0])
	pts = append(pts, wps...)
	pts = append(pts, wps[len(wps)-1])

	out := make([]model.Waypoint, 0, (len(wps)-1)*stepsPerSegment+1)
	for i := 0; i+3 < len(pts); i++ {
		p0, p1, p2, p3 := pts[i], pts[i+1], pts[i+2], pts[i+3]
		for s := 0; s < stepsPerSegment; s++ {
			t := float64(s) / float64(stepsPerSegment)
			out = append(out, model.Waypoint{
				X: catmullRom(p0.X, p1.X, p2.X, p3.X, t),
				Y: catmullRom(p0.Y, p1.Y, p2.Y, p3.Y, t),
				Z: catmullRom(p0.Z, p1.Z, p2.Z, p3.Z, t),
			})
		}
	}
	return append(out, wps[len(wps)-1])
}

func catmullRom(p0, p1, p2, p3, t float64) float64 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * ((2 * p1) +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)
}
