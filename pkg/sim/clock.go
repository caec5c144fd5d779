package sim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"pathplanner/pkg/model"
)

// DefaultStep is the fixed playback step: 50 steps per second.
const DefaultStep = 20 * time.Millisecond

// Frame is a point-in-time view of a Clock.
type Frame struct {
	Index    int             `json:"index"`
	Len      int             `json:"len"`
	State    State           `json:"state"`
	Position *model.Waypoint `json:"position,omitempty"`
	Elapsed  time.Duration   `json:"-"`
	Total    time.Duration   `json:"-"`
	Seconds  float64         `json:"elapsed_s"`
	Duration float64         `json:"total_s"`
	Fraction float64         `json:"fraction"`
}

// Label renders the elapsed/total time the way the playback bar shows it.
func (f Frame) Label() string {
	return fmt.Sprintf("Time: %.2fs / %.2fs", f.Elapsed.Seconds(), f.Total.Seconds())
}

// Clock walks an index over a spline sample. Playback time is index × step,
// so a denser sample plays back longer. Safe for concurrent use.
type Clock struct {
	mu     sync.Mutex
	sample []model.Waypoint
	index  int
	state  State
	step   time.Duration
}

// NewClock returns a stopped clock with no sample.
func NewClock(step time.Duration) *Clock {
	if step <= 0 {
		step = DefaultStep
	}
	return &Clock{state: StateStopped, step: step, sample: []model.Waypoint{}}
}

// Step returns the fixed per-sample duration.
func (c *Clock) Step() time.Duration {
	return c.step
}

// Start rewinds to index 0 and plays. With fewer than two samples there is
// nothing to play and the clock stays stopped.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startLocked()
}

func (c *Clock) startLocked() {
	c.index = 0
	if len(c.sample) < 2 {
		c.state = StateStopped
		return
	}
	c.state = StatePlaying
}

// Stop rewinds to index 0 without playing.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
	c.state = StateStopped
}

// Pause freezes a playing clock. Any other state is left alone.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseLocked()
}

func (c *Clock) pauseLocked() {
	if c.state == StatePlaying {
		c.state = StatePaused
	}
}

// Resume continues a paused clock from its current index.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumeLocked()
}

func (c *Clock) resumeLocked() {
	if c.state == StatePaused && len(c.sample) >= 2 {
		c.state = StatePlaying
	}
}

// Toggle pauses while playing and otherwise plays, starting over when
// stopped. The state is read and switched under one lock.
func (c *Clock) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StatePlaying:
		c.pauseLocked()
	case StatePaused:
		c.resumeLocked()
	default:
		c.startLocked()
	}
}

// ScrubTo jumps to round(fraction × (N-1)). It is ignored while playing,
// for NaN, and on an empty sample. It reports whether the index moved.
func (c *Clock) ScrubTo(fraction float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePlaying || math.IsNaN(fraction) || len(c.sample) == 0 {
		return false
	}
	fraction = math.Max(0, math.Min(1, fraction))
	idx := int(math.Round(fraction * float64(len(c.sample)-1)))
	idx = max(0, min(idx, len(c.sample)-1))
	c.index = idx
	return true
}

// Tick advances one sample while playing, wrapping to 0 after the last one.
// It reports whether the index advanced.
func (c *Clock) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying || len(c.sample) < 2 {
		return false
	}
	c.index++
	if c.index >= len(c.sample) {
		c.index = 0
	}
	return true
}

// ReplaceSample swaps in a new sample and rewinds to index 0. The play state
// is kept unless the new sample is too short to play.
func (c *Clock) ReplaceSample(samples []model.Waypoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sample = model.CloneWaypoints(samples)
	c.index = 0
	if len(c.sample) < 2 {
		c.state = StateStopped
	}
}

// Position returns the current sample point. ok is false on an empty sample.
func (c *Clock) Position() (model.Waypoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sample) == 0 {
		return model.Waypoint{}, false
	}
	return c.sample[c.index], true
}

// Index returns the current sample index.
func (c *Clock) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Len returns the sample size.
func (c *Clock) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sample)
}

// State returns the playback state.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Elapsed returns index × step.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.index) * c.step
}

// Total returns (N-1) × step, or zero for an empty sample.
func (c *Clock) Total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalLocked()
}

func (c *Clock) totalLocked() time.Duration {
	if len(c.sample) < 2 {
		return 0
	}
	return time.Duration(len(c.sample)-1) * c.step
}

// Frame returns a consistent snapshot of the clock.
func (c *Clock) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := Frame{
		Index:   c.index,
		Len:     len(c.sample),
		State:   c.state,
		Elapsed: time.Duration(c.index) * c.step,
		Total:   c.totalLocked(),
	}
	if len(c.sample) > 0 {
		p := c.sample[c.index]
		f.Position = &p
	}
	if len(c.sample) > 1 {
		f.Fraction = float64(c.index) / float64(len(c.sample)-1)
	}
	f.Seconds = f.Elapsed.Seconds()
	f.Duration = f.Total.Seconds()
	return f
}
