package pathstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"pathplanner/pkg/store"
)

// DefaultFileName is the snapshot file created in the user's home directory.
const DefaultFileName = ".pathplanner_paths.json"

// DefaultFile returns ~/.pathplanner_paths.json, falling back to the working
// directory when the home directory is unknown.
func DefaultFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(home, DefaultFileName)
}

// FilePersister keeps the snapshot as a JSON document on disk.
type FilePersister struct {
	Path string
}

// NewFilePersister returns a persister writing to path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{Path: path}
}

// Load reads the snapshot. A missing file yields ErrNoSnapshot.
func (f *FilePersister) Load(ctx context.Context) (Snapshot, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: read %s: %v", ErrPersistence, f.Path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: parse %s: %v", ErrPersistence, f.Path, err)
	}
	return snap, nil
}

// Save writes the snapshot through a temp file and rename.
func (f *FilePersister) Save(ctx context.Context, s Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}
	if dir := filepath.Dir(f.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, tmp, err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", ErrPersistence, tmp, err)
	}
	return nil
}

// Keys used in the persistent_state table.
const (
	KeySnapshot = "paths_snapshot"
	KeyActive   = "paths_active"
	KeyCounter  = "paths_counter"
)

// StatePersister keeps the snapshot in the persistent_state table, alongside
// the active path name and the name counter.
type StatePersister struct {
	st store.StateStore
}

// NewStatePersister returns a persister backed by st.
func NewStatePersister(st store.StateStore) *StatePersister {
	return &StatePersister{st: st}
}

// Load reads the snapshot. A missing key yields ErrNoSnapshot.
func (p *StatePersister) Load(ctx context.Context) (Snapshot, error) {
	raw, ok := p.st.GetState(ctx, KeySnapshot)
	if !ok {
		return Snapshot{}, ErrNoSnapshot
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: parse %s: %v", ErrPersistence, KeySnapshot, err)
	}
	if active, ok := p.st.GetState(ctx, KeyActive); ok {
		snap.Active = active
	}
	if v, ok := p.st.GetState(ctx, KeyCounter); ok {
		if n, err := strconv.Atoi(v); err == nil {
			snap.Counter = n
		}
	}
	return snap, nil
}

// Save writes all three keys.
func (p *StatePersister) Save(ctx context.Context, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}
	if err := p.st.SetState(ctx, KeySnapshot, string(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := p.st.SetState(ctx, KeyActive, s.Active); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := p.st.SetState(ctx, KeyCounter, strconv.Itoa(s.Counter)); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
