// Package serialport opens the vehicle's serial device as a link transport.
package serialport

import (
	"errors"
	"fmt"
	"log/slog"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the vehicle firmware.
const DefaultBaudRate = 9600

// ErrNoPort is returned when no device name was configured.
var ErrNoPort = errors.New("no serial port configured")

// Config selects the device and line settings. Zero values mean 8N1 at
// DefaultBaudRate.
type Config struct {
	Port     string
	BaudRate int
}

func (c Config) mode() *serial.Mode {
	baud := c.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// open is swapped in tests.
var open = func(name string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(name, mode)
}

// Open opens the configured port. The returned serial.Port satisfies
// link.Transport; its Drain is used to flush each command and Close
// unblocks a pending Read.
func Open(cfg Config) (serial.Port, error) {
	if cfg.Port == "" {
		return nil, ErrNoPort
	}
	mode := cfg.mode()
	port, err := open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s at %d baud: %w", cfg.Port, mode.BaudRate, err)
	}
	slog.Info("Serial: port opened", "port", cfg.Port, "baud", mode.BaudRate)
	return port, nil
}

// List returns the serial devices present on this machine.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
