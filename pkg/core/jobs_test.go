package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pathplanner/pkg/sim"
)

func TestBaseJob_LockUnlock(t *testing.T) {
	b := NewBaseJob("test")

	if !b.TryLock() {
		t.Fatal("First TryLock should succeed")
	}
	if !b.Busy() {
		t.Error("Busy() = false after TryLock")
	}
	if b.TryLock() {
		t.Error("Second TryLock should fail when already locked")
	}
	b.Unlock()
	if b.Busy() {
		t.Error("Busy() = true after Unlock")
	}
	if !b.TryLock() {
		t.Error("TryLock should succeed after Unlock")
	}
}

func TestBaseJob_Name(t *testing.T) {
	tests := []struct {
		name     string
		jobName  string
		wantName string
	}{
		{"Simple name", "CSVImport", "CSVImport"},
		{"Empty name", "", ""},
		{"Spaces", "Telemetry Prune", "Telemetry Prune"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBaseJob(tt.jobName)
			if got := b.Name(); got != tt.wantName {
				t.Errorf("Name() = %v, want %v", got, tt.wantName)
			}
		})
	}
}

func TestTimeJob(t *testing.T) {
	var seen atomic.Int64
	j := NewTimeJob("tick", 50*time.Millisecond, func(_ context.Context, f sim.Frame) {
		seen.Store(int64(f.Index))
	})
	f := &sim.Frame{Index: 3, Len: 10}

	if got := j.Interval(); got != 50*time.Millisecond {
		t.Errorf("Interval() = %v", got)
	}
	if !j.ShouldFire(f) {
		t.Fatal("first evaluation should fire")
	}
	j.Run(context.Background(), f)
	if j.Runs() != 1 || seen.Load() != 3 {
		t.Errorf("runs = %d, seen index = %d", j.Runs(), seen.Load())
	}
	if j.ShouldFire(f) {
		t.Error("should not fire again before the interval")
	}

	time.Sleep(60 * time.Millisecond)
	if !j.ShouldFire(f) {
		t.Error("should fire after the interval")
	}
}

func TestTimeJob_NotWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	j := NewTimeJob("busy", time.Millisecond, func(context.Context, sim.Frame) {
		close(started)
		<-release
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		j.Run(context.Background(), &sim.Frame{})
	}()
	<-started

	if j.ShouldFire(&sim.Frame{}) {
		t.Error("running job must not fire")
	}
	j.Run(context.Background(), &sim.Frame{})
	close(release)
	wg.Wait()

	if j.Runs() != 1 {
		t.Errorf("Runs() = %d, want 1", j.Runs())
	}
}

func TestTimeJob_Disabled(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
	}{
		{"Zero", 0},
		{"Negative", -time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewTimeJob("off", tt.interval, func(context.Context, sim.Frame) {})
			if j.ShouldFire(&sim.Frame{}) {
				t.Error("non-positive interval disables the job")
			}
		})
	}
}
