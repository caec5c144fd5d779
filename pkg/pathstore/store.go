// Package pathstore holds the operator's named waypoint paths, tracks which
// one is active, and persists the collection after every edit.
package pathstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"pathplanner/pkg/model"
)

// Direction selects the neighbour MoveWaypoint swaps with.
type Direction int

const (
	// DirUp swaps with the previous waypoint.
	DirUp Direction = iota
	// DirDown swaps with the next waypoint.
	DirDown
)

// ParseDirection accepts "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return DirUp, nil
	case "down":
		return DirDown, nil
	}
	return 0, fmt.Errorf("direction %q: %w", s, ErrInvalidInput)
}

// ChangeKind names the operation behind a Change.
type ChangeKind string

const (
	ChangeWaypoints ChangeKind = "waypoints"
	ChangeCreated   ChangeKind = "created"
	ChangeRenamed   ChangeKind = "renamed"
	ChangeDeleted   ChangeKind = "deleted"
	ChangeSelected  ChangeKind = "selected"
	ChangeRestored  ChangeKind = "restored"
)

// Change is delivered to subscribers after a mutation has been applied.
// Waypoints is a copy of the active path after the change.
type Change struct {
	Kind ChangeKind
	// Path is the path the operation targeted.
	Path string
	// Active is the active path name after the change.
	Active string
	// ActiveChanged is true when the active path's waypoints, or the
	// identity of the active path, changed.
	ActiveChanged bool
	Waypoints     []model.Waypoint
}

// Persister loads and saves store snapshots.
type Persister interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
}

const saveTimeout = 5 * time.Second

// Store is the ordered collection of paths. It is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	paths     []Path
	active    string
	counter   int
	persister Persister

	subMu sync.RWMutex
	subs  []func(Change)
}

// New returns a store holding a single "Path 1", seeded with the default
// waypoints when seedDefault is set. persister may be nil.
func New(persister Persister, seedDefault bool) *Store {
	var wps []model.Waypoint
	if seedDefault {
		wps = model.DefaultPath()
	}
	return &Store{
		paths:     []Path{{Name: "Path 1", Waypoints: model.CloneWaypoints(wps)}},
		active:    "Path 1",
		counter:   1,
		persister: persister,
	}
}

// Load replaces the default state with whatever the persister holds.
// A missing snapshot is not an error. Any other failure leaves the store at
// its default state and is returned wrapped in ErrPersistence.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	snap, err := s.persister.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		slog.Info("PathStore: no saved paths, using defaults")
		return nil
	}
	if err != nil {
		slog.Warn("PathStore: failed to load saved paths, using defaults", "error", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := s.Restore(snap); err != nil {
		slog.Warn("PathStore: saved paths rejected, using defaults", "error", err)
		return err
	}
	slog.Info("PathStore: loaded paths", "count", snap.Len(), "active", s.ActiveName())
	return nil
}

// Subscribe registers fn to be called after every applied mutation.
// Callbacks run on the mutating goroutine, outside the store lock.
func (s *Store) Subscribe(fn func(Change)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) notify(c Change) {
	s.subMu.RLock()
	subs := append([]func(Change){}, s.subs...)
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(c)
	}
}

// indexOf returns the list position of name, or -1. Caller holds mu.
func (s *Store) indexOf(name string) int {
	for i := range s.paths {
		if s.paths[i].Name == name {
			return i
		}
	}
	return -1
}

func (s *Store) find(name string) (*Path, error) {
	i := s.indexOf(name)
	if i < 0 {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return &s.paths[i], nil
}

// snapshotLocked copies the store. Caller holds mu.
func (s *Store) snapshotLocked() Snapshot {
	out := Snapshot{
		Paths:   make([]Path, len(s.paths)),
		Active:  s.active,
		Counter: s.counter,
	}
	for i, p := range s.paths {
		out.Paths[i] = p.clone()
	}
	return out
}

// persistLocked writes the current state. Failures are logged only: edits
// are never rolled back because of I/O. Caller holds mu.
func (s *Store) persistLocked() {
	if s.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.persister.Save(ctx, s.snapshotLocked()); err != nil {
		slog.Error("PathStore: failed to persist paths", "error", err)
	}
}

// commit persists, releases the lock and notifies. Caller holds mu.
func (s *Store) commit(kind ChangeKind, path string, activeChanged bool) {
	s.persistLocked()
	c := Change{Kind: kind, Path: path, Active: s.active, ActiveChanged: activeChanged}
	if p, err := s.find(s.active); err == nil {
		c.Waypoints = model.CloneWaypoints(p.Waypoints)
	}
	s.mu.Unlock()
	s.notify(c)
}

// editWaypoints applies fn to the waypoints of path. fn returns false when
// the edit turned out to be a no-op.
func (s *Store) editWaypoints(path string, fn func(wps []model.Waypoint) ([]model.Waypoint, bool, error)) error {
	s.mu.Lock()
	p, err := s.find(path)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	next, changed, err := fn(p.Waypoints)
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}
	p.Waypoints = next
	s.commit(ChangeWaypoints, path, path == s.active)
	return nil
}

func checkFinite(wp model.Waypoint) error {
	if !wp.Finite() {
		return fmt.Errorf("waypoint %v: %w", wp, ErrInvalidInput)
	}
	return nil
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("index %d of %d: %w", i, n, ErrIndexOutOfRange)
	}
	return nil
}

// AddWaypoint appends wp to path.
func (s *Store) AddWaypoint(path string, wp model.Waypoint) error {
	if err := checkFinite(wp); err != nil {
		return err
	}
	return s.editWaypoints(path, func(wps []model.Waypoint) ([]model.Waypoint, bool, error) {
		return append(wps, wp), true, nil
	})
}

// InsertWaypoint inserts wp before index. index == len appends.
func (s *Store) InsertWaypoint(path string, index int, wp model.Waypoint) error {
	if err := checkFinite(wp); err != nil {
		return err
	}
	return s.editWaypoints(path, func(wps []model.Waypoint) ([]model.Waypoint, bool, error) {
		if err := checkIndex(index, len(wps)+1); err != nil {
			return nil, false, err
		}
		out := make([]model.Waypoint, 0, len(wps)+1)
		out = append(out, wps[:index]...)
		out = append(out, wp)
		out = append(out, wps[index:]...)
		return out, true, nil
	})
}

// UpdateWaypoint replaces the coordinates at index.
func (s *Store) UpdateWaypoint(path string, index int, wp model.Waypoint) error {
	if err := checkFinite(wp); err != nil {
		return err
	}
	return s.editWaypoints(path, func(wps []model.Waypoint) ([]model.Waypoint, bool, error) {
		if err := checkIndex(index, len(wps)); err != nil {
			return nil, false, err
		}
		if wps[index] == wp {
			return nil, false, nil
		}
		wps[index] = wp
		return wps, true, nil
	})
}

// RemoveWaypoint deletes the waypoint at index, shifting later ones down.
func (s *Store) RemoveWaypoint(path string, index int) error {
	return s.editWaypoints(path, func(wps []model.Waypoint) ([]model.Waypoint, bool, error) {
		if err := checkIndex(index, len(wps)); err != nil {
			return nil, false, err
		}
		return append(wps[:index], wps[index+1:]...), true, nil
	})
}

// MoveWaypoint swaps the waypoint at index with its neighbour in dir.
// Moving the first waypoint up or the last one down does nothing.
func (s *Store) MoveWaypoint(path string, index int, dir Direction) error {
	return s.editWaypoints(path, func(wps []model.Waypoint) ([]model.Waypoint, bool, error) {
		if err := checkIndex(index, len(wps)); err != nil {
			return nil, false, err
		}
		j := index + 1
		if dir == DirUp {
			j = index - 1
		}
		if j < 0 || j >= len(wps) {
			return nil, false, nil
		}
		wps[index], wps[j] = wps[j], wps[index]
		return wps, true, nil
	})
}

// ClearWaypoints removes every waypoint from path.
func (s *Store) ClearWaypoints(path string) error {
	return s.editWaypoints(path, func(wps []model.Waypoint) ([]model.Waypoint, bool, error) {
		if len(wps) == 0 {
			return nil, false, nil
		}
		return []model.Waypoint{}, true, nil
	})
}

// ReplaceWaypoints swaps the whole waypoint list of path.
func (s *Store) ReplaceWaypoints(path string, wps []model.Waypoint) error {
	for _, wp := range wps {
		if err := checkFinite(wp); err != nil {
			return err
		}
	}
	next := model.CloneWaypoints(wps)
	return s.editWaypoints(path, func([]model.Waypoint) ([]model.Waypoint, bool, error) {
		return next, true, nil
	})
}

// CreatePath adds an empty path and makes it active. A blank name is
// replaced by "Path {n}" from a counter that never hands out a number twice.
// It returns the name actually used.
func (s *Store) CreatePath(name string) (string, error) {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	if name == "" {
		for {
			s.counter++
			name = "Path " + strconv.Itoa(s.counter)
			if s.indexOf(name) < 0 {
				break
			}
		}
	} else if s.indexOf(name) >= 0 {
		s.mu.Unlock()
		return "", fmt.Errorf("%q: %w", name, ErrDuplicateName)
	}

	s.paths = append(s.paths, Path{Name: name, Waypoints: []model.Waypoint{}})
	s.active = name
	s.commit(ChangeCreated, name, true)
	return name, nil
}

// RenamePath renames old to newName. A blank newName does nothing.
func (s *Store) RenamePath(old, newName string) error {
	newName = strings.TrimSpace(newName)

	s.mu.Lock()
	i := s.indexOf(old)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%q: %w", old, ErrNotFound)
	}
	if newName == "" || newName == old {
		s.mu.Unlock()
		return nil
	}
	if s.indexOf(newName) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%q: %w", newName, ErrDuplicateName)
	}

	s.paths[i].Name = newName
	if s.active == old {
		s.active = newName
	}
	s.commit(ChangeRenamed, newName, false)
	return nil
}

// DeletePath removes name. Deleting the active path activates the path
// before it in list order, or the new first path when it was the first.
func (s *Store) DeletePath(name string) error {
	s.mu.Lock()
	i := s.indexOf(name)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if len(s.paths) <= 1 {
		s.mu.Unlock()
		return ErrLastPathProtected
	}

	s.paths = append(s.paths[:i], s.paths[i+1:]...)
	wasActive := s.active == name
	if wasActive {
		s.active = s.paths[max(i-1, 0)].Name
	}
	s.commit(ChangeDeleted, name, wasActive)
	return nil
}

// SelectPath makes name the active path. The outgoing path is written out
// before switching.
func (s *Store) SelectPath(name string) error {
	s.mu.Lock()
	if s.indexOf(name) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if s.active == name {
		s.mu.Unlock()
		return nil
	}
	s.persistLocked()
	s.active = name
	s.commit(ChangeSelected, name, true)
	return nil
}

// ActiveName returns the name of the active path.
func (s *Store) ActiveName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ActivePath returns a copy of the active path.
func (s *Store) ActivePath() Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, _ := s.find(s.active)
	return p.clone()
}

// Path returns a copy of the named path.
func (s *Store) Path(name string) (Path, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.find(name)
	if err != nil {
		return Path{}, err
	}
	return p.clone(), nil
}

// Names lists path names in store order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.paths))
	for i, p := range s.paths {
		out[i] = p.Name
	}
	return out
}

// Snapshot returns a deep copy of the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Restore replaces the whole store with snap. An invalid snapshot returns
// ErrPersistence and leaves the store untouched. Subscribers are notified
// once.
func (s *Store) Restore(snap Snapshot) error {
	if err := validate(snap); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	paths := make([]Path, len(snap.Paths))
	counter := snap.Counter
	for i, p := range snap.Paths {
		paths[i] = p.clone()
		if n, ok := autoNumber(p.Name); ok && n > counter {
			counter = n
		}
	}
	active := snap.Active
	if active == "" || !containsPath(paths, active) {
		active = paths[0].Name
	}

	s.mu.Lock()
	s.paths = paths
	s.active = active
	if counter > s.counter {
		s.counter = counter
	}
	s.commit(ChangeRestored, active, true)
	return nil
}

func validate(snap Snapshot) error {
	if len(snap.Paths) == 0 {
		return errors.New("snapshot holds no paths")
	}
	seen := make(map[string]bool, len(snap.Paths))
	for _, p := range snap.Paths {
		if strings.TrimSpace(p.Name) == "" {
			return errors.New("blank path name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate path %q", p.Name)
		}
		seen[p.Name] = true
		for i, wp := range p.Waypoints {
			if !wp.Finite() {
				return fmt.Errorf("path %q waypoint %d is not finite", p.Name, i)
			}
		}
	}
	return nil
}

func containsPath(paths []Path, name string) bool {
	for _, p := range paths {
		if p.Name == name {
			return true
		}
	}
	return false
}

// autoNumber extracts n from names of the form "Path n".
func autoNumber(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "Path ")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
