package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathplanner/pkg/model"
	"pathplanner/pkg/sim"
)

type frameRecorder struct {
	mu     sync.Mutex
	frames []sim.Frame
}

func (r *frameRecorder) UpdateFrame(f sim.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *frameRecorder) indexes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.frames))
	for i, f := range r.frames {
		out[i] = f.Index
	}
	return out
}

func fiveSamples() []model.Waypoint {
	return []model.Waypoint{model.WP(0, 0, 0), model.WP(1, 0, 0), model.WP(2, 0, 0), model.WP(3, 0, 0), model.WP(4, 0, 0)}
}

func TestScheduler_TickPublishesFrames(t *testing.T) {
	clock := sim.NewClock(time.Millisecond)
	clock.ReplaceSample(fiveSamples())
	sink := &frameRecorder{}
	s := NewScheduler(clock, sink)

	ctx := context.Background()
	s.tick(ctx) // stopped: first frame is always published
	s.tick(ctx) // unchanged: not published
	assert.Equal(t, []int{0}, sink.indexes())

	clock.Start()
	for i := 0; i < 5; i++ {
		s.tick(ctx)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 0}, sink.indexes(), "wraps after the last sample")

	clock.Pause()
	s.tick(ctx) // state change published once
	s.tick(ctx)
	clock.ScrubTo(0.5)
	s.tick(ctx)
	idx := sink.indexes()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 0, 0, 2}, idx)
}

func TestScheduler_FiresJobs(t *testing.T) {
	clock := sim.NewClock(time.Millisecond)
	s := NewScheduler(clock, nil)

	var runs atomic.Int32
	s.AddJob(NewTimeJob("once", time.Hour, func(context.Context, sim.Frame) { runs.Add(1) }))

	ctx := context.Background()
	s.tick(ctx)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	s.tick(ctx)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, map[string]uint64{"once": 1}, s.runCounts())
}

func TestScheduler_StartStops(t *testing.T) {
	clock := sim.NewClock(time.Millisecond)
	clock.ReplaceSample(fiveSamples())
	clock.Start()
	sink := &frameRecorder{}
	s := NewScheduler(clock, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(sink.indexes()) >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
