package mockvehicle

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathplanner/pkg/geo"
	"pathplanner/pkg/link"
	"pathplanner/pkg/model"
	"pathplanner/pkg/spline"
)

var home = geo.LocalFrame{Home: geo.Point{Lat: 51.5033, Lon: -0.1195}, Alt: 320, Unit: 1}

func testConfig() Config {
	return Config{
		Frame:             home,
		StepDuration:      2 * time.Millisecond,
		TelemetryInterval: 4 * time.Millisecond,
		Spline:            spline.NewGenerator(spline.AlgorithmCatmullRom, 10),
		Seed:              7,
	}
}

type collector struct {
	mu     sync.Mutex
	frames []link.Telemetry
	errs   int
}

func (c *collector) OnTelemetry(t link.Telemetry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, t)
}

func (c *collector) OnParseError(string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs++
}

func (c *collector) last() (link.Telemetry, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return link.Telemetry{}, 0, c.errs
	}
	return c.frames[len(c.frames)-1], len(c.frames), c.errs
}

func connect(t *testing.T, cfg Config) (*Vehicle, *link.Link, *collector) {
	t.Helper()
	v, transport := Pipe(cfg)
	l := link.New(transport, link.Options{Channel: "mock", EventBuffer: 16})
	c := &collector{}
	l.SetObserver(c)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() {
		_ = l.Close()
		_ = v.Close()
	})
	return v, l, c
}

func TestVehicle_IdleTelemetry(t *testing.T) {
	v, _, c := connect(t, testConfig())

	require.Eventually(t, func() bool {
		_, n, _ := c.last()
		return n >= 3
	}, 2*time.Second, 5*time.Millisecond)

	tel, _, errs := c.last()
	assert.Equal(t, 0, errs)
	require.True(t, tel.HasPosition())
	assert.InDelta(t, 51.5033, *tel.Lat, 1e-6)
	assert.InDelta(t, -0.1195, *tel.Lon, 1e-6)
	assert.InDelta(t, 320, *tel.Alt, 1e-6)
	assert.Equal(t, ModeIdle, tel.Raw["mode"])
	assert.Equal(t, ModeIdle, v.Mode())
}

func TestVehicle_FliesUploadedPath(t *testing.T) {
	v, l, c := connect(t, testConfig())

	require.NoError(t, l.SendWaypoints(model.DefaultPath()))
	require.Eventually(t, func() bool { return v.Mode() == ModeAuto }, 2*time.Second, time.Millisecond)

	// The vehicle leaves the origin and climbs along the path.
	require.Eventually(t, func() bool {
		tel, _, _ := c.last()
		return tel.Raw["mode"] == ModeAuto && tel.Alt != nil && *tel.Alt > 320
	}, 2*time.Second, 5*time.Millisecond)

	pos := v.Position()
	assert.True(t, pos.Finite())
	assert.Equal(t, int64(1), v.Stats().CommandsReceived)
}

func TestVehicle_ManualMove(t *testing.T) {
	v, l, _ := connect(t, testConfig())

	require.NoError(t, l.SendMove(0, 1, 0, 1))
	require.Eventually(t, func() bool {
		p := v.Position()
		return v.Mode() == ModeManual && p.Z > 0.1 && p.Y > 0.01
	}, 2*time.Second, 5*time.Millisecond, "full throttle heading north climbs away")

	assert.InDelta(t, 0, v.Position().X, 1e-9, "heading 0 keeps x fixed")
}

func TestVehicle_Garbage(t *testing.T) {
	cfg := testConfig()
	cfg.GarbageRate = 1
	v, l, c := connect(t, cfg)

	require.Eventually(t, func() bool {
		_, _, errs := c.last()
		return errs >= 3
	}, 2*time.Second, 5*time.Millisecond)

	_, n, _ := c.last()
	assert.Equal(t, 0, n)
	assert.GreaterOrEqual(t, v.Stats().GarbageSent, int64(3))
	assert.GreaterOrEqual(t, l.Summary().ParseErrors, uint64(3))
}

func TestVehicle_BadCommandIgnored(t *testing.T) {
	v, transport := Pipe(testConfig())
	defer v.Close()
	defer transport.Close()

	// Drain telemetry so the vehicle never blocks on the pipe.
	go func() {
		buf := make([]byte, 1024)
		for {
			if _, err := transport.Read(buf); err != nil {
				return
			}
		}
	}()

	_, err := transport.Write([]byte("{\"cmd\":\"selfdestruct\"}\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return v.Stats().BadCommands == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, ModeIdle, v.Mode())
}

func TestVehicle_ServeAfterClose(t *testing.T) {
	v := New(testConfig())
	require.NoError(t, v.Close())

	a, b := net.Pipe()
	defer b.Close()
	assert.ErrorIs(t, v.Serve(a), link.ErrClosed)
}

func TestVehicle_PeerHangup(t *testing.T) {
	v := New(testConfig())
	a, b := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- v.Serve(a) }()

	require.NoError(t, b.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after hangup")
	}
}
