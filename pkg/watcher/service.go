package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Service polls directories for new or rewritten files with one of the
// watched extensions. Files already present when the service starts are
// treated as seen.
type Service struct {
	paths []string
	exts  []string

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewService creates a monitor for paths. exts are matched
// case-insensitively and include the dot, e.g. ".csv".
func NewService(paths []string, exts ...string) (*Service, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no directories to watch")
	}
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			slog.Warn("Watcher: Directory does not exist", "path", path)
		}
	}
	lower := make([]string, len(exts))
	for i, e := range exts {
		lower[i] = strings.ToLower(e)
	}

	s := &Service{
		paths: paths,
		exts:  lower,
		seen:  make(map[string]time.Time),
	}
	for _, f := range s.scan() {
		s.seen[f.path] = f.mod
	}
	return s, nil
}

// Paths returns the watched directories.
func (s *Service) Paths() []string {
	return s.paths
}

type entry struct {
	path string
	mod  time.Time
}

func (s *Service) matches(name string) bool {
	if len(s.exts) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, e := range s.exts {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}

func (s *Service) scan() []entry {
	var out []entry
	for _, path := range s.paths {
		entries, err := os.ReadDir(path)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !s.matches(e.Name()) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			out = append(out, entry{path: filepath.Join(path, e.Name()), mod: info.ModTime()})
		}
	}
	return out
}

// CheckNew returns files created or modified since the previous call,
// oldest first.
func (s *Service) CheckNew() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []entry
	for _, f := range s.scan() {
		if prev, ok := s.seen[f.path]; ok && prev.Equal(f.mod) {
			continue
		}
		s.seen[f.path] = f.mod
		fresh = append(fresh, f)
	}
	sort.Slice(fresh, func(i, j int) bool {
		if fresh[i].mod.Equal(fresh[j].mod) {
			return fresh[i].path < fresh[j].path
		}
		return fresh[i].mod.Before(fresh[j].mod)
	})

	files := make([]string, len(fresh))
	for i, f := range fresh {
		files[i] = f.path
		slog.Info("Watcher: New file detected", "file", filepath.Base(f.path), "dir", filepath.Dir(f.path))
	}
	return files
}
