package pathstore

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathplanner/pkg/model"
)

// memPersister records every saved snapshot.
type memPersister struct {
	mu    sync.Mutex
	saved []Snapshot
	load  Snapshot
	err   error
}

func (m *memPersister) Load(ctx context.Context) (Snapshot, error) {
	if m.err != nil {
		return Snapshot{}, m.err
	}
	if m.load.Paths == nil {
		return Snapshot{}, ErrNoSnapshot
	}
	return m.load, nil
}

func (m *memPersister) Save(ctx context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, s)
	return nil
}

func (m *memPersister) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func wps(n int) []model.Waypoint {
	out := make([]model.Waypoint, n)
	for i := range out {
		out[i] = model.WP(float64(i), float64(i*2), float64(i*3))
	}
	return out
}

func TestNew(t *testing.T) {
	s := New(nil, true)
	assert.Equal(t, "Path 1", s.ActiveName())
	assert.Equal(t, model.DefaultPath(), s.ActivePath().Waypoints)

	empty := New(nil, false)
	assert.Empty(t, empty.ActivePath().Waypoints)
	assert.Equal(t, []string{"Path 1"}, empty.Names())
}

func TestAddWaypoint(t *testing.T) {
	s := New(nil, false)

	require.NoError(t, s.AddWaypoint("Path 1", model.WP(1, 2, 3)))
	assert.Equal(t, []model.Waypoint{model.WP(1, 2, 3)}, s.ActivePath().Waypoints)

	for _, bad := range []model.Waypoint{
		model.WP(math.NaN(), 0, 0),
		model.WP(0, math.Inf(1), 0),
		model.WP(0, 0, math.Inf(-1)),
	} {
		err := s.AddWaypoint("Path 1", bad)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Len(t, s.ActivePath().Waypoints, 1, "failed adds must not change the path")

	assert.ErrorIs(t, s.AddWaypoint("nope", model.WP(0, 0, 0)), ErrNotFound)
}

func TestRemoveWaypoint(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		wantErr error
		want    []model.Waypoint
	}{
		{"First", 0, nil, wps(3)[1:]},
		{"Middle", 1, nil, []model.Waypoint{wps(3)[0], wps(3)[2]}},
		{"Last", 2, nil, wps(3)[:2]},
		{"Negative", -1, ErrIndexOutOfRange, wps(3)},
		{"PastEnd", 3, ErrIndexOutOfRange, wps(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil, false)
			require.NoError(t, s.ReplaceWaypoints("Path 1", wps(3)))

			err := s.RemoveWaypoint("Path 1", tt.index)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, s.ActivePath().Waypoints)
		})
	}
}

func TestMoveWaypoint(t *testing.T) {
	w := wps(3)
	tests := []struct {
		name    string
		index   int
		dir     Direction
		wantErr error
		want    []model.Waypoint
	}{
		{"FirstUpNoop", 0, DirUp, nil, w},
		{"LastDownNoop", 2, DirDown, nil, w},
		{"FirstDown", 0, DirDown, nil, []model.Waypoint{w[1], w[0], w[2]}},
		{"LastUp", 2, DirUp, nil, []model.Waypoint{w[0], w[2], w[1]}},
		{"OutOfRange", 5, DirUp, ErrIndexOutOfRange, w},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &memPersister{}
			s := New(p, false)
			require.NoError(t, s.ReplaceWaypoints("Path 1", w))
			before := p.count()

			err := s.MoveWaypoint("Path 1", tt.index, tt.dir)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, s.ActivePath().Waypoints)
			if tt.name == "FirstUpNoop" || tt.name == "LastDownNoop" {
				assert.Equal(t, before, p.count(), "no-op move must not persist")
			}
		})
	}
}

func TestInsertAndUpdateWaypoint(t *testing.T) {
	s := New(nil, false)
	require.NoError(t, s.ReplaceWaypoints("Path 1", wps(2)))

	require.NoError(t, s.InsertWaypoint("Path 1", 1, model.WP(9, 9, 9)))
	require.NoError(t, s.InsertWaypoint("Path 1", 3, model.WP(7, 7, 7)))
	assert.Equal(t, []model.Waypoint{wps(2)[0], model.WP(9, 9, 9), wps(2)[1], model.WP(7, 7, 7)}, s.ActivePath().Waypoints)
	assert.ErrorIs(t, s.InsertWaypoint("Path 1", 5, model.WP(0, 0, 0)), ErrIndexOutOfRange)

	require.NoError(t, s.UpdateWaypoint("Path 1", 0, model.WP(-1, -1, -1)))
	assert.Equal(t, model.WP(-1, -1, -1), s.ActivePath().Waypoints[0])
	assert.ErrorIs(t, s.UpdateWaypoint("Path 1", 4, model.WP(0, 0, 0)), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.UpdateWaypoint("Path 1", 0, model.WP(math.NaN(), 0, 0)), ErrInvalidInput)
}

func TestClearWaypoints(t *testing.T) {
	s := New(nil, true)
	require.NoError(t, s.ClearWaypoints("Path 1"))
	assert.Empty(t, s.ActivePath().Waypoints)
}

func TestCreatePath(t *testing.T) {
	s := New(nil, false)

	name, err := s.CreatePath("")
	require.NoError(t, err)
	assert.Equal(t, "Path 2", name)
	assert.Equal(t, "Path 2", s.ActiveName())
	assert.Empty(t, s.ActivePath().Waypoints)

	name, err = s.CreatePath("Survey")
	require.NoError(t, err)
	assert.Equal(t, "Survey", name)

	_, err = s.CreatePath("Survey")
	assert.ErrorIs(t, err, ErrDuplicateName)

	// Counter is never reused, even after deleting the latest path.
	require.NoError(t, s.DeletePath("Path 2"))
	name, err = s.CreatePath("")
	require.NoError(t, err)
	assert.Equal(t, "Path 3", name)

	// A user-chosen name that collides with the next generated one is skipped.
	_, err = s.CreatePath("Path 4")
	require.NoError(t, err)
	name, err = s.CreatePath("")
	require.NoError(t, err)
	assert.Equal(t, "Path 5", name)

	assert.Equal(t, []string{"Path 1", "Survey", "Path 3", "Path 4", "Path 5"}, s.Names())
}

func TestRenamePath(t *testing.T) {
	s := New(nil, false)
	_, _ = s.CreatePath("B")

	assert.ErrorIs(t, s.RenamePath("missing", "X"), ErrNotFound)
	assert.ErrorIs(t, s.RenamePath("Path 1", "B"), ErrDuplicateName)
	assert.NoError(t, s.RenamePath("Path 1", "   "))
	assert.NoError(t, s.RenamePath("B", "B"))
	assert.Equal(t, []string{"Path 1", "B"}, s.Names())

	require.NoError(t, s.RenamePath("B", "Renamed"))
	assert.Equal(t, "Renamed", s.ActiveName(), "active name follows a rename")
	assert.Equal(t, []string{"Path 1", "Renamed"}, s.Names())
}

func TestDeletePath(t *testing.T) {
	t.Run("LastPathProtected", func(t *testing.T) {
		p := &memPersister{}
		s := New(p, true)
		before := s.Snapshot()

		err := s.DeletePath("Path 1")
		assert.ErrorIs(t, err, ErrLastPathProtected)
		assert.Equal(t, before, s.Snapshot())
		assert.Zero(t, p.count())
	})

	t.Run("NotFound", func(t *testing.T) {
		s := New(nil, true)
		_, _ = s.CreatePath("A")
		assert.ErrorIs(t, s.DeletePath("nope"), ErrNotFound)
	})

	t.Run("ActiveFallsToPrevious", func(t *testing.T) {
		s := New(nil, true)
		_, _ = s.CreatePath("A")
		_, _ = s.CreatePath("B")
		require.NoError(t, s.SelectPath("A"))

		require.NoError(t, s.DeletePath("A"))
		assert.Equal(t, "Path 1", s.ActiveName())
	})

	t.Run("FirstActiveFallsToNewFirst", func(t *testing.T) {
		s := New(nil, true)
		_, _ = s.CreatePath("A")
		_, _ = s.CreatePath("B")
		require.NoError(t, s.SelectPath("Path 1"))

		require.NoError(t, s.DeletePath("Path 1"))
		assert.Equal(t, "A", s.ActiveName())
	})

	t.Run("InactiveKeepsActive", func(t *testing.T) {
		s := New(nil, true)
		_, _ = s.CreatePath("A")
		require.NoError(t, s.DeletePath("Path 1"))
		assert.Equal(t, "A", s.ActiveName())
	})
}

func TestSelectPath_PersistsOutgoing(t *testing.T) {
	p := &memPersister{}
	s := New(p, false)
	_, _ = s.CreatePath("B")
	require.NoError(t, s.AddWaypoint("B", model.WP(1, 1, 1)))
	before := p.count()

	require.NoError(t, s.SelectPath("Path 1"))
	require.Greater(t, p.count(), before)
	outgoing := p.saved[before]
	assert.Equal(t, "B", outgoing.Active)
	got, ok := outgoing.Waypoints("B")
	require.True(t, ok)
	assert.Equal(t, []model.Waypoint{model.WP(1, 1, 1)}, got)

	assert.ErrorIs(t, s.SelectPath("missing"), ErrNotFound)
	assert.Equal(t, "Path 1", s.ActiveName())
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := New(nil, true)
	_, _ = s.CreatePath("Zulu")
	_ = s.AddWaypoint("Zulu", model.WP(1, 2, 3))
	_ = s.AddWaypoint("Zulu", model.WP(1, 2, 3))
	_, _ = s.CreatePath("Alpha")

	snap := s.Snapshot()

	other := New(nil, false)
	require.NoError(t, other.Restore(snap))
	assert.Equal(t, s.Names(), other.Names())
	for _, name := range s.Names() {
		a, _ := s.Path(name)
		b, _ := other.Path(name)
		assert.Equal(t, a.Waypoints, b.Waypoints, name)
	}
	assert.Equal(t, "Alpha", other.ActiveName())

	// Snapshots are copies.
	snap.Paths[0].Waypoints[0] = model.WP(999, 999, 999)
	p, _ := s.Path("Path 1")
	assert.Equal(t, model.DefaultPath()[0], p.Waypoints[0])
}

func TestRestore_Malformed(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
	}{
		{"Empty", Snapshot{}},
		{"BlankName", Snapshot{Paths: []Path{{Name: " "}}}},
		{"Duplicate", Snapshot{Paths: []Path{{Name: "A"}, {Name: "A"}}}},
		{"NonFinite", Snapshot{Paths: []Path{{Name: "A", Waypoints: []model.Waypoint{model.WP(math.NaN(), 0, 0)}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil, true)
			before := s.Snapshot()
			notified := 0
			s.Subscribe(func(Change) { notified++ })

			err := s.Restore(tt.snap)
			assert.ErrorIs(t, err, ErrPersistence)
			assert.Equal(t, before, s.Snapshot())
			assert.Zero(t, notified)
		})
	}
}

func TestRestore_CounterNotReused(t *testing.T) {
	s := New(nil, false)
	require.NoError(t, s.Restore(Snapshot{Paths: []Path{{Name: "Path 1"}, {Name: "Path 7"}}}))

	name, err := s.CreatePath("")
	require.NoError(t, err)
	assert.Equal(t, "Path 8", name)
}

func TestRestore_NotifiesOnce(t *testing.T) {
	s := New(nil, false)
	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	require.NoError(t, s.Restore(Snapshot{
		Paths:  []Path{{Name: "A", Waypoints: wps(2)}, {Name: "B", Waypoints: wps(4)}},
		Active: "B",
	}))
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeRestored, changes[0].Kind)
	assert.Equal(t, "B", changes[0].Active)
	assert.Equal(t, wps(4), changes[0].Waypoints)
}

func TestSubscribe(t *testing.T) {
	s := New(nil, false)
	_, _ = s.CreatePath("Other")
	require.NoError(t, s.SelectPath("Path 1"))

	var changes []Change
	s.Subscribe(func(c Change) {
		// Callbacks run outside the lock, so reading back is safe.
		_ = s.ActiveName()
		changes = append(changes, c)
	})

	require.NoError(t, s.AddWaypoint("Path 1", model.WP(1, 1, 1)))
	require.NoError(t, s.AddWaypoint("Other", model.WP(2, 2, 2)))

	require.Len(t, changes, 2)
	assert.True(t, changes[0].ActiveChanged)
	assert.Equal(t, []model.Waypoint{model.WP(1, 1, 1)}, changes[0].Waypoints)
	assert.False(t, changes[1].ActiveChanged, "edits to an inactive path do not change the active spline")
}

func TestLoad(t *testing.T) {
	t.Run("NoSnapshot", func(t *testing.T) {
		s := New(&memPersister{}, true)
		require.NoError(t, s.Load(context.Background()))
		assert.Equal(t, model.DefaultPath(), s.ActivePath().Waypoints)
	})

	t.Run("Corrupt", func(t *testing.T) {
		s := New(&memPersister{err: errors.New("disk on fire")}, true)
		err := s.Load(context.Background())
		assert.ErrorIs(t, err, ErrPersistence)
		assert.Equal(t, model.DefaultPath(), s.ActivePath().Waypoints)
	})

	t.Run("Saved", func(t *testing.T) {
		p := &memPersister{load: Snapshot{Paths: []Path{{Name: "Saved", Waypoints: wps(2)}}}}
		s := New(p, true)
		require.NoError(t, s.Load(context.Background()))
		assert.Equal(t, []string{"Saved"}, s.Names())
		assert.Equal(t, "Saved", s.ActiveName())
	})
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("Up")
	require.NoError(t, err)
	assert.Equal(t, DirUp, d)
	d, err = ParseDirection("down")
	require.NoError(t, err)
	assert.Equal(t, DirDown, d)
	_, err = ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
