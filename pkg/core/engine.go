package core

import (
	"context"
	"log/slog"
	"sync"

	"pathplanner/pkg/model"
	"pathplanner/pkg/pathstore"
	"pathplanner/pkg/sim"
	"pathplanner/pkg/spline"
)

// SplineSettings is the part of config.Provider the engine reads.
type SplineSettings interface {
	SplineAlgorithm(ctx context.Context) string
	BezierSteps(ctx context.Context) int
	CatmullSteps(ctx context.Context) int
}

// Engine keeps the clock's sample in step with the active path: every
// structural change resamples the path and swaps it into the clock.
type Engine struct {
	store    *pathstore.Store
	clock    *sim.Clock
	settings SplineSettings

	mu     sync.RWMutex
	path   string
	gen    spline.Generator
	sample []model.Waypoint
}

// NewEngine wires a store to a clock. settings may be nil for defaults.
func NewEngine(st *pathstore.Store, clock *sim.Clock, settings SplineSettings) *Engine {
	return &Engine{
		store:    st,
		clock:    clock,
		settings: settings,
		gen:      spline.NewGenerator(spline.AlgorithmCatmullRom, 0),
		sample:   []model.Waypoint{},
	}
}

// Start subscribes to store changes and computes the initial sample.
func (e *Engine) Start(ctx context.Context) {
	e.store.Subscribe(func(c pathstore.Change) {
		if !c.ActiveChanged {
			if c.Kind == pathstore.ChangeRenamed {
				e.mu.Lock()
				e.path = c.Active
				e.mu.Unlock()
			}
			return
		}
		e.Recompute(context.WithoutCancel(ctx))
	})
	e.Recompute(ctx)
}

// Generator resolves the current spline settings.
func (e *Engine) Generator(ctx context.Context) spline.Generator {
	if e.settings == nil {
		return spline.NewGenerator(spline.AlgorithmCatmullRom, 0)
	}
	alg, err := spline.ParseAlgorithm(e.settings.SplineAlgorithm(ctx))
	if err != nil {
		slog.Warn("Engine: falling back to catmull-rom", "error", err)
		alg = spline.AlgorithmCatmullRom
	}
	steps := e.settings.CatmullSteps(ctx)
	if alg == spline.AlgorithmBezier {
		steps = e.settings.BezierSteps(ctx)
	}
	return spline.NewGenerator(alg, steps)
}

// Recompute resamples the active path and replaces the clock's sample. The
// clock index resets to 0.
func (e *Engine) Recompute(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.store.ActivePath()
	gen := e.Generator(ctx)
	sample := gen.Sample(p.Waypoints)

	e.path, e.gen, e.sample = p.Name, gen, sample
	e.clock.ReplaceSample(sample)

	slog.Debug("Engine: sample replaced", "path", p.Name, "waypoints", len(p.Waypoints), "samples", len(sample), "algorithm", gen.Algorithm)
}

// Sample returns the current sample with the path and generator it came from.
func (e *Engine) Sample() (string, spline.Generator, []model.Waypoint) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.path, e.gen, model.CloneWaypoints(e.sample)
}
