package tracker

import (
	"sync"
	"testing"
)

func TestTracker(t *testing.T) {
	tr := New()
	channel := "serial"

	// Test Initial State
	stats := tr.Snapshot()
	if len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	// Test Tracking
	tr.TrackFrame(channel)
	tr.TrackFrame(channel)
	tr.TrackParseFailure(channel)
	tr.TrackSent(channel)
	tr.TrackSendFailure(channel)
	tr.TrackBytes(channel, 42)

	// Verify Snapshot
	stats = tr.Snapshot()
	s, ok := stats[channel]
	if !ok {
		t.Fatalf("Expected stats for channel %s", channel)
	}
	want := ChannelStats{FramesReceived: 2, ParseFailures: 1, CommandsSent: 1, SendFailures: 1, BytesReceived: 42}
	if s != want {
		t.Errorf("got %+v, want %+v", s, want)
	}

	// Snapshot is a copy
	tr.TrackFrame(channel)
	if stats[channel].FramesReceived != 2 {
		t.Error("snapshot changed after further tracking")
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(ch string) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.TrackFrame(ch)
			}
		}([]string{"a", "b"}[i%2])
	}
	wg.Wait()

	stats := tr.Snapshot()
	if stats["a"].FramesReceived != 500 || stats["b"].FramesReceived != 500 {
		t.Errorf("unexpected counts: %+v", stats)
	}
}
