package link

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	readChunk = 4096
	// maxLine bounds the receive buffer when the peer never sends '\n'.
	maxLine = 64 * 1024
)

// Event is one processed inbound line. Err is set (wrapping
// ErrProtocolParse) when the line could not be parsed; Telemetry otherwise.
type Event struct {
	Line      string
	Telemetry Telemetry
	Err       error
}

// Receiver splits a byte stream into lines and parses each as telemetry.
type Receiver struct {
	r      io.Reader
	events chan Event
	// OnRead, when set, is called with the size of every successful read.
	OnRead func(n int)
	now    func() time.Time
}

// NewReceiver returns a receiver whose event channel holds up to buffer
// events. buffer < 1 is treated as 1.
func NewReceiver(r io.Reader, buffer int) *Receiver {
	if buffer < 1 {
		buffer = 1
	}
	return &Receiver{r: r, events: make(chan Event, buffer), now: time.Now}
}

// Events returns the channel Run publishes to. It is closed when Run returns.
func (rx *Receiver) Events() <-chan Event {
	return rx.events
}

// Run reads until the stream ends. io.EOF ends cleanly and a trailing line
// without '\n' is still processed. Any other read error ends the loop with
// ErrTransport. Cancelling ctx stops delivery, but a blocked Read only
// returns once the underlying transport is closed.
func (rx *Receiver) Run(ctx context.Context) error {
	defer close(rx.events)

	var buf []byte
	chunk := make([]byte, readChunk)
	for {
		n, err := rx.r.Read(chunk)
		if n > 0 {
			if rx.OnRead != nil {
				rx.OnRead(n)
			}
			buf = append(buf, chunk[:n]...)
			buf, err = rx.drain(ctx, buf, err)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(buf) > 0 {
					if !rx.process(ctx, buf) {
						return ctx.Err()
					}
				}
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// drain processes every complete line in buf and returns the remainder.
// A cancelled context is reported through the returned error.
func (rx *Receiver) drain(ctx context.Context, buf []byte, readErr error) ([]byte, error) {
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := buf[:i]
		if !rx.process(ctx, line) {
			return nil, ctx.Err()
		}
		buf = buf[i+1:]
	}
	if len(buf) > maxLine {
		if !rx.emit(ctx, Event{Line: string(buf[:64]) + "...", Err: fmt.Errorf("%w: line exceeds %d bytes", ErrProtocolParse, maxLine)}) {
			return nil, ctx.Err()
		}
		buf = nil
	}
	// Compact so the backing array does not grow without bound.
	return append([]byte(nil), buf...), readErr
}

// process parses one raw line. It returns false if ctx ended first.
func (rx *Receiver) process(ctx context.Context, raw []byte) bool {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 {
		return true
	}
	ev := Event{Line: string(line)}
	t, err := ParseTelemetry(line)
	if err != nil {
		ev.Err = err
	} else {
		t.ReceivedAt = rx.now()
		ev.Telemetry = t
	}
	return rx.emit(ctx, ev)
}

func (rx *Receiver) emit(ctx context.Context, ev Event) bool {
	select {
	case rx.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
