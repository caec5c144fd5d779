package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Zone is a named geofence area, e.g. a no-fly zone around a building.
type Zone struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// FenceService checks positions against polygon zones loaded from GeoJSON.
type FenceService struct {
	mu       sync.RWMutex
	features []*geojson.Feature
}

// NewFenceService creates a service and loads the given GeoJSON files.
func NewFenceService(paths ...string) (*FenceService, error) {
	s := &FenceService{}
	for _, path := range paths {
		if err := s.load(path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FenceService) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read geojson %s: %w", path, err)
	}
	return s.Add(data)
}

// Add loads a FeatureCollection document.
func (s *FenceService) Add(data []byte) error {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("failed to parse geojson: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			s.features = append(s.features, f)
		}
	}
	return nil
}

// Len returns the number of loaded zones.
func (s *FenceService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.features)
}

// ZonesAt returns every zone covering the coordinates.
func (s *FenceService) ZonesAt(lat, lon float64) []Zone {
	point := orb.Point{lon, lat}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Zone
	for _, f := range s.features {
		if !f.Geometry.Bound().Contains(point) {
			continue
		}
		if containsPoint(f.Geometry, point) {
			results = append(results, Zone{
				Name: getStringProp(f.Properties, "name"),
				Kind: getStringProp(f.Properties, "kind"),
			})
		}
	}
	return results
}

func containsPoint(geom orb.Geometry, point orb.Point) bool {
	switch g := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, point)
	case orb.MultiPolygon:
		for _, poly := range g {
			if planar.PolygonContains(poly, point) {
				return true
			}
		}
	}
	return false
}

// getStringProp safely extracts a string property from GeoJSON properties.
func getStringProp(props geojson.Properties, key string) string {
	if val, ok := props[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
		if f, ok := val.(json.Number); ok {
			return string(f)
		}
	}
	return ""
}
