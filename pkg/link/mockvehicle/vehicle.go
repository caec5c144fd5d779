// Package mockvehicle is a simulated vehicle speaking the link protocol. It
// flies uploaded paths, obeys raw move commands and reports telemetry lines,
// optionally interleaved with garbage to exercise the receiver's error path.
package mockvehicle

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"pathplanner/pkg/geo"
	"pathplanner/pkg/link"
	"pathplanner/pkg/model"
	"pathplanner/pkg/sim"
	"pathplanner/pkg/spline"
)

// Flight modes reported in the "mode" telemetry field.
const (
	ModeIdle   = "IDLE"
	ModeAuto   = "AUTO"
	ModeManual = "MANUAL"
)

// Manual flight envelope at full deflection.
const (
	maxSpeed    = 12.0 // m/s
	maxClimb    = 4.0  // m/s
	maxTurnRate = 45.0 // deg/s
)

// autoTurnRate limits heading changes while following a path, in deg/s.
const autoTurnRate = 180.0

var garbage = []string{
	`{"lat":51.5,"lon":`,
	`GPS NO FIX`,
	`{"alt":}`,
	"\x00\x00\xff",
}

// Config holds timing and placement of the simulated vehicle.
type Config struct {
	Frame             geo.LocalFrame
	StepDuration      time.Duration
	TelemetryInterval time.Duration
	// GarbageRate is the probability that a telemetry slot carries a
	// malformed line instead.
	GarbageRate float64
	Spline      spline.Generator
	Seed        uint64
}

// Stats counts the vehicle's traffic.
type Stats struct {
	CommandsReceived int64 `json:"commands_received"`
	BadCommands      int64 `json:"bad_commands"`
	FramesSent       int64 `json:"frames_sent"`
	GarbageSent      int64 `json:"garbage_sent"`
	Dropped          int64 `json:"dropped"`
}

// Vehicle is one simulated airframe. It serves a single connection at a time.
type Vehicle struct {
	cfg Config

	mu       sync.Mutex
	clock    *sim.Clock
	mode     string
	pos      model.Waypoint
	heading  float64
	move     link.MoveCommand
	trackBuf *geo.TrackBuffer
	rng      *rand.Rand
	conn     io.ReadWriteCloser
	closed   bool

	commands    atomic.Int64
	badCommands atomic.Int64
	frames      atomic.Int64
	garbageOut  atomic.Int64
	dropped     atomic.Int64
}

// New creates an idle vehicle hovering at the frame origin.
func New(cfg Config) *Vehicle {
	if cfg.StepDuration <= 0 {
		cfg.StepDuration = 100 * time.Millisecond
	}
	if cfg.TelemetryInterval <= 0 {
		cfg.TelemetryInterval = time.Second
	}
	if cfg.Spline.Steps <= 0 {
		cfg.Spline = spline.NewGenerator(cfg.Spline.Algorithm, 0)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Vehicle{
		cfg:      cfg,
		clock:    sim.NewClock(cfg.StepDuration),
		mode:     ModeIdle,
		trackBuf: geo.NewTrackBuffer(5),
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Pipe starts a vehicle on one end of an in-memory connection and returns
// the other end for the link.
func Pipe(cfg Config) (*Vehicle, link.Transport) {
	v := New(cfg)
	host, dev := net.Pipe()
	go func() {
		if err := v.Serve(dev); err != nil {
			slog.Warn("MockVehicle: serve ended", "error", err)
		}
	}()
	return v, host
}

var errBusy = errors.New("vehicle already connected")

// Serve runs the vehicle on conn until the peer hangs up or Close is called.
func (v *Vehicle) Serve(conn io.ReadWriteCloser) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		_ = conn.Close()
		return link.ErrClosed
	}
	if v.conn != nil {
		v.mu.Unlock()
		_ = conn.Close()
		return errBusy
	}
	v.conn = conn
	v.mu.Unlock()

	slog.Info("MockVehicle: connected")

	out := make(chan []byte, 16)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		v.writeLoop(conn, out, done)
	}()
	go func() {
		defer wg.Done()
		v.physicsLoop(out, done)
	}()

	err := v.readLoop(conn)
	close(done)
	_ = conn.Close()
	wg.Wait()

	v.mu.Lock()
	v.conn = nil
	closed := v.closed
	v.mu.Unlock()

	slog.Info("MockVehicle: disconnected")
	if closed {
		return nil
	}
	return err
}

// Close ends the current connection and refuses new ones.
func (v *Vehicle) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	if v.conn != nil {
		return v.conn.Close()
	}
	return nil
}

func (v *Vehicle) readLoop(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		cmd, err := link.DecodeCommand(line)
		if err != nil {
			v.badCommands.Add(1)
			slog.Debug("MockVehicle: bad command", "line", string(line), "error", err)
			continue
		}
		v.commands.Add(1)
		v.apply(cmd)
	}
	err := sc.Err()
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (v *Vehicle) apply(cmd link.Command) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch c := cmd.(type) {
	case link.WaypointsCommand:
		samples := v.cfg.Spline.Sample(c.Points)
		v.clock.ReplaceSample(samples)
		if len(samples) >= 2 {
			v.clock.Start()
			v.mode = ModeAuto
			v.trackBuf.Reset()
		} else {
			v.mode = ModeIdle
		}
		slog.Info("MockVehicle: path uploaded", "waypoints", len(c.Points), "samples", len(samples))
	case link.MoveCommand:
		if v.mode == ModeAuto {
			v.clock.Pause()
		}
		v.mode = ModeManual
		v.move = c
	}
}

func (v *Vehicle) physicsLoop(out chan<- []byte, done <-chan struct{}) {
	ticker := time.NewTicker(v.cfg.StepDuration)
	defer ticker.Stop()

	every := int(v.cfg.TelemetryInterval / v.cfg.StepDuration)
	if every < 1 {
		every = 1
	}

	ticks := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			v.update(v.cfg.StepDuration.Seconds())
			ticks++
			if ticks%every == 0 {
				v.emit(out)
			}
		}
	}
}

func (v *Vehicle) update(dt float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.mode {
	case ModeAuto:
		v.clock.Tick()
		if p, ok := v.clock.Position(); ok {
			v.pos = p
		}
		pt, _ := v.cfg.Frame.ToGeo(v.pos)
		v.heading = geo.TurnToward(v.heading, v.trackBuf.Push(pt, v.heading), autoTurnRate*dt)
	case ModeManual:
		u := v.cfg.Frame.Unit
		if u <= 0 {
			u = 1
		}
		v.heading = math.Mod(v.heading+v.move.Yaw*maxTurnRate*dt+360, 360)
		speed := clamp(v.move.Throttle, 0, 1) * maxSpeed
		climb := clamp(v.move.Pitch, -1, 1) * maxClimb
		rad := v.heading * (math.Pi / 180.0)
		v.pos.X += math.Sin(rad) * speed * dt / u
		v.pos.Z += math.Cos(rad) * speed * dt / u
		v.pos.Y += climb * dt / u
	}
}

type frame struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Alt     float64 `json:"alt"`
	Heading float64 `json:"heading"`
	Mode    string  `json:"mode"`
	Index   int     `json:"wp_index"`
}

func (v *Vehicle) emit(out chan<- []byte) {
	v.mu.Lock()
	var line []byte
	if v.cfg.GarbageRate > 0 && v.rng.Float64() < v.cfg.GarbageRate {
		line = []byte(garbage[v.rng.IntN(len(garbage))] + "\n")
		v.garbageOut.Add(1)
	} else {
		pt, alt := v.cfg.Frame.ToGeo(v.pos)
		f := frame{
			Lat:     round(pt.Lat, 7),
			Lon:     round(pt.Lon, 7),
			Alt:     round(alt, 2),
			Heading: round(v.heading, 1),
			Mode:    v.mode,
			Index:   v.clock.Index(),
		}
		data, err := json.Marshal(f)
		if err != nil {
			v.mu.Unlock()
			slog.Error("MockVehicle: encode telemetry", "error", err)
			return
		}
		line = append(data, '\n')
		v.frames.Add(1)
	}
	v.mu.Unlock()

	select {
	case out <- line:
	default:
		v.dropped.Add(1)
	}
}

func (v *Vehicle) writeLoop(w io.Writer, out <-chan []byte, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case line := <-out:
			if _, err := w.Write(line); err != nil {
				slog.Debug("MockVehicle: write failed", "error", err)
				return
			}
		}
	}
}

// Mode returns the current flight mode.
func (v *Vehicle) Mode() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// Position returns the vehicle's local position.
func (v *Vehicle) Position() model.Waypoint {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos
}

// Stats returns a snapshot of the traffic counters.
func (v *Vehicle) Stats() Stats {
	return Stats{
		CommandsReceived: v.commands.Load(),
		BadCommands:      v.badCommands.Load(),
		FramesSent:       v.frames.Load(),
		GarbageSent:      v.garbageOut.Load(),
		Dropped:          v.dropped.Load(),
	}
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
