package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pathplanner/pkg/logging"
	"pathplanner/pkg/pathstore"
	"pathplanner/pkg/sim"
)

// FileSource reports files that appeared since the last poll.
type FileSource interface {
	CheckNew() []string
}

// NewImportJob turns CSV files dropped into a watched folder into paths.
// The file name without extension names the path; an existing path of that
// name has its waypoints replaced.
func NewImportJob(interval time.Duration, src FileSource, st *pathstore.Store) *TimeJob {
	return NewTimeJob("CSVImport", interval, func(_ context.Context, _ sim.Frame) {
		for _, file := range src.CheckNew() {
			if err := ImportCSVFile(st, file); err != nil {
				slog.Warn("CSVImport: skipped file", "file", file, "error", err)
			}
		}
	})
}

// ImportCSVFile reads file and stores its rows under the file's base name.
func ImportCSVFile(st *pathstore.Store, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	wps, skipped, err := pathstore.ReadCSV(f)
	if err != nil {
		return err
	}
	if len(wps) == 0 {
		return fmt.Errorf("no valid rows (%d skipped): %w", skipped, pathstore.ErrInvalidInput)
	}

	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	if _, err := st.CreatePath(name); err != nil && !errors.Is(err, pathstore.ErrDuplicateName) {
		return err
	}
	if err := st.ReplaceWaypoints(name, wps); err != nil {
		return err
	}

	slog.Info("CSVImport: path imported", "path", name, "imported", len(wps), "skipped", skipped)
	logging.LogEvent(logging.Event{
		Timestamp: time.Now(),
		Type:      logging.EventPath,
		Title:     "Imported " + name,
		Summary:   fmt.Sprintf("%s: %d waypoints, %d rows skipped", filepath.Base(file), len(wps), skipped),
	})
	return nil
}
