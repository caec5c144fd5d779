package core

import (
	"context"
	"sync/atomic"
	"time"

	"pathplanner/pkg/sim"
)

// Job is a periodic task the scheduler evaluates once per clock step.
type Job interface {
	Name() string
	ShouldFire(f *sim.Frame) bool
	Run(ctx context.Context, f *sim.Frame)
}

// BaseJob carries a job's name and a busy flag so a slow run is never
// started twice.
type BaseJob struct {
	name string
	busy atomic.Bool
}

func NewBaseJob(name string) BaseJob {
	return BaseJob{name: name}
}

func (b *BaseJob) Name() string {
	return b.name
}

// TryLock marks the job busy. It reports false if it already was.
func (b *BaseJob) TryLock() bool {
	return b.busy.CompareAndSwap(false, true)
}

func (b *BaseJob) Unlock() {
	b.busy.Store(false)
}

// Busy reports whether a run is in progress.
func (b *BaseJob) Busy() bool {
	return b.busy.Load()
}

// TimeJob runs its action on the first step and then at most once per
// interval of wall time. A non-positive interval disables it.
type TimeJob struct {
	BaseJob
	interval time.Duration
	action   func(context.Context, sim.Frame)

	lastRun atomic.Int64 // unix nanos; zero until the first run
	runs    atomic.Uint64
}

func NewTimeJob(name string, interval time.Duration, action func(context.Context, sim.Frame)) *TimeJob {
	return &TimeJob{
		BaseJob:  NewBaseJob(name),
		interval: interval,
		action:   action,
	}
}

// Interval returns the configured period.
func (j *TimeJob) Interval() time.Duration {
	return j.interval
}

// Runs returns how many times the action has been started.
func (j *TimeJob) Runs() uint64 {
	return j.runs.Load()
}

func (j *TimeJob) ShouldFire(_ *sim.Frame) bool {
	if j.interval <= 0 || j.Busy() {
		return false
	}
	last := j.lastRun.Load()
	return last == 0 || time.Since(time.Unix(0, last)) >= j.interval
}

// Run executes the action with a copy of the frame. Concurrent calls while a
// run is in progress return immediately.
func (j *TimeJob) Run(ctx context.Context, f *sim.Frame) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	j.lastRun.Store(time.Now().UnixNano())
	j.runs.Add(1)

	j.action(ctx, *f)
}
