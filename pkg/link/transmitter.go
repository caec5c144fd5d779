package link

import (
	"fmt"
	"io"
	"sync"
)

type flusher interface {
	Flush() error
}

// drainer matches serial ports, which block until the output buffer is sent.
type drainer interface {
	Drain() error
}

// Transmitter writes framed commands. Each Send is one write plus a flush,
// with no acknowledgement and no retry.
type Transmitter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTransmitter returns a transmitter writing to w.
func NewTransmitter(w io.Writer) *Transmitter {
	return &Transmitter{w: w}
}

// Send encodes and writes cmd. I/O failures wrap ErrTransport and affect only
// this attempt. It may block on transport backpressure.
func (t *Transmitter) Send(cmd Command) error {
	data, err := Encode(cmd)
	if err != nil {
		return fmt.Errorf("encode %T: %w", cmd, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.w.Write(data); err != nil {
		return fmt.Errorf("%w: write: %v", ErrTransport, err)
	}
	switch f := t.w.(type) {
	case flusher:
		if err := f.Flush(); err != nil {
			return fmt.Errorf("%w: flush: %v", ErrTransport, err)
		}
	case drainer:
		if err := f.Drain(); err != nil {
			return fmt.Errorf("%w: drain: %v", ErrTransport, err)
		}
	}
	return nil
}
