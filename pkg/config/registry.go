package config

// Persistent state keys (Registry) for settings changed at runtime.
const (
	KeySplineAlgorithm = "spline_algorithm"
	KeyBezierSteps     = "spline_bezier_steps"
	KeyCatmullSteps    = "spline_catmull_steps"
	KeyAutoplay        = "sim_autoplay"
	KeyMockHomeLat     = "mock_home_lat"
	KeyMockHomeLon     = "mock_home_lon"
	KeyMockHomeAlt     = "mock_home_alt"
	KeyTrace           = "log_trace"
)

// SettingKeys lists every key accepted by UnifiedProvider.Set.
var SettingKeys = []string{
	KeySplineAlgorithm,
	KeyBezierSteps,
	KeyCatmullSteps,
	KeyAutoplay,
	KeyMockHomeLat,
	KeyMockHomeLon,
	KeyMockHomeAlt,
	KeyTrace,
}
