package core

import (
	"context"
	"log/slog"
	"time"

	"pathplanner/pkg/sim"
)

// Scheduler is the playback heartbeat. Once per clock step it advances the
// clock, publishes the frame and evaluates the registered jobs.
type Scheduler struct {
	clock *sim.Clock
	sink  FrameSink
	jobs  []Job

	last    sim.Frame
	hasLast bool
}

// NewScheduler creates a new Scheduler. sink may be nil.
func NewScheduler(clock *sim.Clock, sink FrameSink) *Scheduler {
	return &Scheduler{
		clock: clock,
		sink:  sink,
		jobs:  []Job{},
	}
}

// AddJob registers a job. Not safe to call after Start.
func (s *Scheduler) AddJob(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start runs the main loop. It blocks until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	interval := s.clock.Step()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Scheduler started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped", "runs", s.runCounts())
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	advanced := s.clock.Tick()
	f := s.clock.Frame()

	// Frames are pushed while playing and whenever a scrub, pause or
	// sample swap changed what a viewer would see.
	if s.sink != nil && (advanced || s.changed(f)) {
		s.sink.UpdateFrame(f)
	}
	s.last, s.hasLast = f, true

	for _, job := range s.jobs {
		if job.ShouldFire(&f) {
			go job.Run(ctx, &f)
		}
	}
}

func (s *Scheduler) changed(f sim.Frame) bool {
	if !s.hasLast {
		return true
	}
	return f.Index != s.last.Index || f.Len != s.last.Len || f.State != s.last.State
}

// runCounts reports how often each counting job has run, keyed by name.
func (s *Scheduler) runCounts() map[string]uint64 {
	out := make(map[string]uint64, len(s.jobs))
	for _, j := range s.jobs {
		if c, ok := j.(interface{ Runs() uint64 }); ok {
			out[j.Name()] = c.Runs()
		}
	}
	return out
}
