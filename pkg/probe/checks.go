package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// Pinger is satisfied by *sql.DB and pkg/db.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Database checks that the store answers.
func Database(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if p == nil {
			return errors.New("database not initialised")
		}
		return p.PingContext(ctx)
	}
}

// WritableDir checks that files can be created next to path, which is
// where the path snapshot or the database lives.
func WritableDir(path string) CheckFunc {
	return func(ctx context.Context) error {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return fmt.Errorf("%s is not writable: %w", dir, err)
		}
		name := f.Name()
		f.Close()
		return os.Remove(name)
	}
}

// SerialPort checks that the configured device is present. list enumerates
// the available ports.
func SerialPort(port string, list func() ([]string, error)) CheckFunc {
	return func(ctx context.Context) error {
		if port == "" {
			return errors.New("no serial port configured")
		}
		ports, err := list()
		if err != nil {
			return err
		}
		if !slices.Contains(ports, port) {
			return fmt.Errorf("port %s not found (available: %v)", port, ports)
		}
		return nil
	}
}

// FilesReadable checks that every listed file can be opened.
func FilesReadable(paths ...string) CheckFunc {
	return func(ctx context.Context) error {
		var errs []error
		for _, p := range paths {
			f, err := os.Open(p)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			f.Close()
		}
		return errors.Join(errs...)
	}
}
