package core

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"pathplanner/pkg/sim"
	"pathplanner/pkg/store"
)

// KeyPlayback is the persistent_state key holding the playback position.
const KeyPlayback = "playback_state"

const persistInterval = 30 * time.Second

type playbackState struct {
	Path  string    `json:"path"`
	State sim.State `json:"state"`
	Index int       `json:"index"`
	Len   int       `json:"len"`
}

// PlaybackPersistenceJob saves the playback position so a restart resumes
// where the operator left off.
type PlaybackPersistenceJob struct {
	st     store.StateStore
	clock  *sim.Clock
	engine *Engine

	lastSavedState []byte
}

// NewPlaybackPersistenceJob creates a new persistence job.
func NewPlaybackPersistenceJob(st store.StateStore, clock *sim.Clock, engine *Engine) *PlaybackPersistenceJob {
	return &PlaybackPersistenceJob{
		st:     st,
		clock:  clock,
		engine: engine,
	}
}

// Start begins the persistence loop.
func (j *PlaybackPersistenceJob) Start(ctx context.Context) {
	ticker := time.NewTicker(persistInterval)

	slog.Info("Persistence: Playback persistence loop started")

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				j.CheckAndSave(context.WithoutCancel(ctx))
				return
			case <-ticker.C:
				j.CheckAndSave(ctx)
			}
		}
	}()
}

func (j *PlaybackPersistenceJob) current() playbackState {
	path, _, _ := j.engine.Sample()
	f := j.clock.Frame()
	return playbackState{Path: path, State: f.State, Index: f.Index, Len: f.Len}
}

// CheckAndSave writes the playback state if it changed since the last save.
func (j *PlaybackPersistenceJob) CheckAndSave(ctx context.Context) {
	data, err := json.Marshal(j.current())
	if err != nil {
		slog.Error("Persistence: Failed to serialize playback state", "error", err)
		return
	}

	if bytes.Equal(data, j.lastSavedState) {
		return
	}

	if err := j.st.SetState(ctx, KeyPlayback, string(data)); err != nil {
		slog.Error("Persistence: Failed to save playback state", "error", err)
	} else {
		j.lastSavedState = data
		slog.Debug("Persistence: Playback saved", "size", len(data))
	}
}

// Restore re-applies a saved position. It only does so when the saved state
// belongs to the same path and sample length, and reports whether it did.
func (j *PlaybackPersistenceJob) Restore(ctx context.Context) bool {
	raw, ok := j.st.GetState(ctx, KeyPlayback)
	if !ok {
		return false
	}
	var saved playbackState
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		slog.Warn("Persistence: Discarding unreadable playback state", "error", err)
		return false
	}

	cur := j.current()
	if saved.Path != cur.Path || saved.Len != cur.Len || saved.Len < 2 {
		slog.Debug("Persistence: Playback state does not match current sample", "saved_path", saved.Path, "path", cur.Path)
		return false
	}

	fraction := float64(saved.Index) / float64(saved.Len-1)
	switch saved.State {
	case sim.StatePlaying:
		j.clock.Start()
		j.clock.Pause()
		j.clock.ScrubTo(fraction)
		j.clock.Resume()
	case sim.StatePaused:
		j.clock.Start()
		j.clock.Pause()
		j.clock.ScrubTo(fraction)
	default:
		j.clock.Stop()
		j.clock.ScrubTo(fraction)
	}
	j.lastSavedState = []byte(raw)
	slog.Info("Persistence: Playback restored", "path", saved.Path, "state", saved.State, "index", saved.Index)
	return true
}
