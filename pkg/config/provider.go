package config

import (
	"context"
	"fmt"
	"strconv"

	"pathplanner/pkg/store"
)

// Provider defines the interface for accessing unified configuration.
type Provider interface {
	// Spline
	SplineAlgorithm(ctx context.Context) string
	BezierSteps(ctx context.Context) int
	CatmullSteps(ctx context.Context) int

	// Playback
	Autoplay(ctx context.Context) bool

	// Mock vehicle
	MockHomeLat(ctx context.Context) float64
	MockHomeLon(ctx context.Context) float64
	MockHomeAlt(ctx context.Context) float64

	Trace(ctx context.Context) bool

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
// Values set through Set survive restarts and win over the file.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider. st may be nil.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

func (p *UnifiedProvider) SplineAlgorithm(ctx context.Context) string {
	return p.getString(ctx, KeySplineAlgorithm, p.base.Spline.Algorithm)
}

func (p *UnifiedProvider) BezierSteps(ctx context.Context) int {
	return p.getInt(ctx, KeyBezierSteps, p.base.Spline.BezierSteps)
}

func (p *UnifiedProvider) CatmullSteps(ctx context.Context) int {
	return p.getInt(ctx, KeyCatmullSteps, p.base.Spline.CatmullSteps)
}

func (p *UnifiedProvider) Autoplay(ctx context.Context) bool {
	return p.getBool(ctx, KeyAutoplay, p.base.Sim.Autoplay)
}

func (p *UnifiedProvider) MockHomeLat(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyMockHomeLat, p.base.Mock.HomeLat)
}

func (p *UnifiedProvider) MockHomeLon(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyMockHomeLon, p.base.Mock.HomeLon)
}

func (p *UnifiedProvider) MockHomeAlt(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyMockHomeAlt, p.base.Mock.HomeAlt)
}

func (p *UnifiedProvider) Trace(ctx context.Context) bool {
	return p.getBool(ctx, KeyTrace, p.base.Log.Trace)
}

// Set stores a runtime override. Unknown keys are rejected.
func (p *UnifiedProvider) Set(ctx context.Context, key, val string) error {
	if p.store == nil {
		return fmt.Errorf("no state store for setting %s", key)
	}
	switch key {
	case KeySplineAlgorithm:
		switch val {
		case "catmull-rom", "bezier":
		default:
			return fmt.Errorf("invalid %s %q", key, val)
		}
	case KeyBezierSteps, KeyCatmullSteps:
		n, err := strconv.Atoi(val)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid %s %q: must be a positive integer", key, val)
		}
	case KeyAutoplay, KeyTrace:
		if _, err := strconv.ParseBool(val); err != nil {
			return fmt.Errorf("invalid %s %q", key, val)
		}
	case KeyMockHomeLat, KeyMockHomeLon, KeyMockHomeAlt:
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			return fmt.Errorf("invalid %s %q", key, val)
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return p.store.SetState(ctx, key, val)
}

// Reset removes a runtime override so the file value applies again.
func (p *UnifiedProvider) Reset(ctx context.Context, key string) error {
	if p.store == nil {
		return nil
	}
	return p.store.DeleteState(ctx, key)
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getInt(ctx context.Context, key string, fallback int) int {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				return i
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getBool(ctx context.Context, key string, fallback bool) bool {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				return b
			}
		}
	}
	return fallback
}
