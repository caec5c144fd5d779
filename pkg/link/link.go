package link

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"pathplanner/pkg/logging"
	"pathplanner/pkg/model"
	"pathplanner/pkg/tracker"
)

// Transport is the duplex byte stream to the vehicle. Close must unblock a
// pending Read.
type Transport = io.ReadWriteCloser

// Observer receives link events. All calls come from a single dispatcher
// goroutine, never concurrently.
type Observer interface {
	OnTelemetry(t Telemetry)
	OnParseError(line string, err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Telemetry  func(Telemetry)
	ParseError func(line string, err error)
}

func (o ObserverFuncs) OnTelemetry(t Telemetry) {
	if o.Telemetry != nil {
		o.Telemetry(t)
	}
}

func (o ObserverFuncs) OnParseError(line string, err error) {
	if o.ParseError != nil {
		o.ParseError(line, err)
	}
}

// Options configure a Link.
type Options struct {
	// Channel names the link in statistics, e.g. "serial" or "mock".
	Channel string
	// EventBuffer bounds the queue between receiver and dispatcher.
	EventBuffer int
	Tracker     *tracker.Tracker
}

var (
	errNotStarted     = errors.New("link not started")
	errAlreadyStarted = errors.New("link already started")
)

type observerBox struct{ o Observer }

// Link runs the receive loop and the transmitter over one transport.
type Link struct {
	transport Transport
	rx        *Receiver
	tx        *Transmitter
	opts      Options

	observer atomic.Pointer[observerBox]
	summary  atomic.Pointer[Summary]

	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
	err       error
}

// New wraps t. Nothing is read until Start.
func New(t Transport, opts Options) *Link {
	if opts.Channel == "" {
		opts.Channel = "link"
	}
	l := &Link{
		transport: t,
		rx:        NewReceiver(t, opts.EventBuffer),
		tx:        NewTransmitter(t),
		opts:      opts,
		done:      make(chan struct{}),
	}
	empty := EmptySummary()
	l.summary.Store(&empty)
	if opts.Tracker != nil {
		l.rx.OnRead = func(n int) { opts.Tracker.TrackBytes(opts.Channel, n) }
	}
	return l
}

// SetObserver installs o, replacing any previous observer. nil removes it.
func (l *Link) SetObserver(o Observer) {
	if o == nil {
		l.observer.Store(nil)
		return
	}
	l.observer.Store(&observerBox{o: o})
}

// Start launches the receive loop and the dispatcher. Cancelling ctx closes
// the transport, which unblocks the pending read.
func (l *Link) Start(ctx context.Context) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if !l.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}

	rxDone := make(chan error, 1)
	go func() {
		rxDone <- l.rx.Run(ctx)
	}()

	go func() {
		l.dispatch()
		err := <-rxDone
		if l.closed.Load() || ctx.Err() != nil {
			err = nil
		}
		if err != nil {
			slog.Warn("Link: receive loop ended", "channel", l.opts.Channel, "error", err)
		} else {
			slog.Info("Link: receive loop stopped", "channel", l.opts.Channel)
		}
		l.err = err
		close(l.done)
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-l.done:
		}
	}()

	slog.Info("Link: started", "channel", l.opts.Channel)
	return nil
}

// dispatch is the single writer of the summary and the only caller of the
// observer.
func (l *Link) dispatch() {
	logger := slog.Default().With("channel", l.opts.Channel)
	for ev := range l.rx.Events() {
		logging.Trace(logger, "Link: rx", "line", ev.Line)

		prev := l.summary.Load()
		next := *prev
		if ev.Err != nil {
			next.ParseErrors++
			if l.opts.Tracker != nil {
				l.opts.Tracker.TrackParseFailure(l.opts.Channel)
			}
			slog.Debug("Link: dropped malformed line", "channel", l.opts.Channel, "line", ev.Line, "error", ev.Err)
		} else {
			next.Frames++
			next.GPS, next.Altitude, next.Heading = summarize(ev.Telemetry)
			next.UpdatedAt = ev.Telemetry.ReceivedAt
			if l.opts.Tracker != nil {
				l.opts.Tracker.TrackFrame(l.opts.Channel)
			}
		}
		l.summary.Store(&next)

		box := l.observer.Load()
		if box == nil {
			continue
		}
		if ev.Err != nil {
			box.o.OnParseError(ev.Line, ev.Err)
		} else {
			box.o.OnTelemetry(ev.Telemetry)
		}
	}
}

// Summary returns the latest dashboard snapshot.
func (l *Link) Summary() Summary {
	return *l.summary.Load()
}

// Send writes one command. It must not be called from an Observer.
func (l *Link) Send(cmd Command) error {
	if l.closed.Load() {
		return ErrClosed
	}
	err := l.tx.Send(cmd)
	if l.opts.Tracker != nil {
		if err != nil {
			l.opts.Tracker.TrackSendFailure(l.opts.Channel)
		} else {
			l.opts.Tracker.TrackSent(l.opts.Channel)
		}
	}
	if err != nil {
		slog.Warn("Link: send failed", "channel", l.opts.Channel, "cmd", cmd.Name(), "error", err)
		return err
	}
	return nil
}

// SendWaypoints uploads a path.
func (l *Link) SendWaypoints(wps []model.Waypoint) error {
	return l.Send(WaypointsCommand{Points: model.CloneWaypoints(wps)})
}

// SendMove relays raw control values.
func (l *Link) SendMove(roll, pitch, yaw, throttle float64) error {
	return l.Send(MoveCommand{Roll: roll, Pitch: pitch, Yaw: yaw, Throttle: throttle})
}

// Done is closed once the receive loop and dispatcher have finished.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the link stops and returns the receive loop's error,
// nil for a clean end of stream or a deliberate Close.
func (l *Link) Wait() error {
	if !l.started.Load() {
		return errNotStarted
	}
	<-l.done
	return l.err
}

// Close closes the transport. It is safe to call more than once.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		l.closeErr = l.transport.Close()
	})
	return l.closeErr
}
