package geo

import (
	"sync"
	"time"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"pathplanner/pkg/model"
)

// TrackBuffer maintains a rolling window of coordinates and calculates the average ground track.
type TrackBuffer struct {
	mu         sync.RWMutex
	samples    []Point
	windowSize int
}

// NewTrackBuffer creates a new buffer with the specified sample window size.
func NewTrackBuffer(windowSize int) *TrackBuffer {
	if windowSize < 2 {
		windowSize = 2
	}
	return &TrackBuffer{
		windowSize: windowSize,
	}
}

// Push adds a new point to the buffer and returns the current calculated track (bearing).
// If the buffer has fewer than 2 distinct points, it returns the provided default heading.
func (b *TrackBuffer) Push(p Point, defaultHeading float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, p)
	if len(b.samples) > b.windowSize {
		b.samples = b.samples[1:]
	}

	if len(b.samples) < 2 || b.samples[0] == b.samples[len(b.samples)-1] {
		return defaultHeading
	}

	// Bearing from oldest to newest point in window
	return Bearing(b.samples[0], b.samples[len(b.samples)-1])
}

// Reset clears the buffer history.
func (b *TrackBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
}

// Fix is one recorded vehicle position.
type Fix struct {
	Point
	Alt     *float64
	Heading *float64
	Time    time.Time
}

// Track keeps the most recent fixes of the vehicle, oldest first.
type Track struct {
	mu    sync.RWMutex
	fixes []Fix
	max   int
}

// NewTrack returns a track holding at most max fixes (max < 1 means 1000).
func NewTrack(max int) *Track {
	if max < 1 {
		max = 1000
	}
	return &Track{max: max}
}

// Add appends a fix, dropping the oldest when full.
func (t *Track) Add(f Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fixes = append(t.fixes, f)
	if over := len(t.fixes) - t.max; over > 0 {
		t.fixes = append([]Fix(nil), t.fixes[over:]...)
	}
}

// Fixes returns a copy of the recorded fixes.
func (t *Track) Fixes() []Fix {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Fix(nil), t.fixes...)
}

// Len returns the number of fixes.
func (t *Track) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.fixes)
}

// Reset drops all fixes.
func (t *Track) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fixes = nil
}

// LineString returns the track in GeoJSON axis order (lon, lat).
func (t *Track) LineString() orb.LineString {
	return lineString(t.Fixes())
}

func lineString(fixes []Fix) orb.LineString {
	ls := make(orb.LineString, 0, len(fixes))
	for _, f := range fixes {
		ls = append(ls, f.toOrb())
	}
	return ls
}

// Length is the flown ground distance in metres.
func (t *Track) Length() float64 {
	return orbgeo.Length(t.LineString())
}

// FeatureCollection exports the track as a LineString feature plus a Point
// feature for the latest fix. An empty track yields an empty collection.
func (t *Track) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fixes := t.Fixes()
	if len(fixes) == 0 {
		return fc
	}

	if len(fixes) > 1 {
		ls := lineString(fixes)
		line := geojson.NewFeature(ls)
		line.Properties["kind"] = "track"
		line.Properties["fixes"] = len(fixes)
		line.Properties["length_m"] = orbgeo.Length(ls)
		line.Properties["started_at"] = fixes[0].Time.UTC().Format(time.RFC3339)
		fc.Append(line)
	}

	last := fixes[len(fixes)-1]
	pt := geojson.NewFeature(last.toOrb())
	pt.Properties["kind"] = "vehicle"
	pt.Properties["time"] = last.Time.UTC().Format(time.RFC3339)
	if last.Alt != nil {
		pt.Properties["alt"] = *last.Alt
	}
	if last.Heading != nil {
		pt.Properties["heading"] = *last.Heading
	}
	fc.Append(pt)
	return fc
}

// PathFeature projects a planned path through frame as a LineString feature.
// Altitudes are carried in the "alts" property since GeoJSON positions are 2D here.
func PathFeature(name string, wps []model.Waypoint, frame LocalFrame) *geojson.Feature {
	ls := make(orb.LineString, 0, len(wps))
	alts := make([]float64, 0, len(wps))
	for _, wp := range wps {
		p, alt := frame.ToGeo(wp)
		ls = append(ls, p.toOrb())
		alts = append(alts, alt)
	}
	f := geojson.NewFeature(ls)
	f.Properties["kind"] = "path"
	f.Properties["name"] = name
	f.Properties["alts"] = alts
	f.Properties["length_m"] = orbgeo.Length(ls)
	return f
}
