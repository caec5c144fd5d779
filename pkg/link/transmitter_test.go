package link

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type drainWriter struct {
	bytes.Buffer
	drains   int
	drainErr error
}

func (d *drainWriter) Drain() error {
	d.drains++
	return d.drainErr
}

func TestTransmitter_Flushes(t *testing.T) {
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)
	tx := NewTransmitter(bw)

	require.NoError(t, tx.Send(MoveCommand{Throttle: 0.5}))
	assert.Equal(t, `{"cmd":"move","roll":0,"pitch":0,"yaw":0,"throttle":0.5}`+"\n", out.String())
}

func TestTransmitter_Drains(t *testing.T) {
	dw := &drainWriter{}
	tx := NewTransmitter(dw)
	require.NoError(t, tx.Send(WaypointsCommand{}))
	assert.Equal(t, 1, dw.drains)
	assert.Equal(t, `{"cmd":"waypoints","points":[]}`+"\n", dw.String())

	dw.drainErr = errors.New("port gone")
	assert.ErrorIs(t, tx.Send(WaypointsCommand{}), ErrTransport)
}
