package slave_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mklimuk/twi/master"
	"github.com/mklimuk/twi/sim"
	"github.com/mklimuk/twi/slave"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

const serviceAddr = 0x10

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func setup(t *testing.T, size int) (*master.Master, *slave.Slave, *sim.Bus) {
	t.Helper()
	bus := sim.NewBus(sim.WithLogger(quiet))
	m := master.New(bus.Master(), master.WithLogger(quiet), master.WithSleep(bus.Sleep))
	bus.Master().OnInterrupt(m.HandleBusEvent)
	require.NoError(t, m.TurnOn(100*physic.KiloHertz))

	port := bus.NewSlave()
	s := slave.New(port, slave.WithLogger(quiet), slave.WithBufferSize(size), slave.WithSleep(bus.Sleep))
	port.OnInterrupt(s.HandleBusEvent)
	require.NoError(t, s.TurnOn(serviceAddr))
	return m, s, bus
}

func TestSlave_Bus_ClockStretching(t *testing.T) {
	m, s, bus := setup(t, 5)

	require.NoError(t, m.SendStart())
	_, err := m.WriteTo(serviceAddr, []byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	m.WaitWhileBusy(time.Millisecond)
	require.True(t, m.EOW())
	assert.Equal(t, slave.RecBufferFull, s.State())

	// STOP waits until the slave lets go of the clock
	m.SendStop()
	bus.Pump()
	assert.Equal(t, slave.RecBufferFull, s.State())

	dst := make([]byte, 5)
	n, err := s.ReadBuffer(dst)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, dst)
	bus.Pump()
	assert.Equal(t, slave.EOR, s.State())

	n, err = s.ReadBuffer(dst)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, s.IsListening())
}

func TestSlave_Bus_Reads(t *testing.T) {
	tests := []struct {
		name   string
		staged []byte
		read   int
		want   []byte
		state  slave.State
	}{
		{"exact", []byte{0xA, 0xB, 0xC}, 3, []byte{0xA, 0xB, 0xC}, slave.EOW},
		{"master wants more", []byte{0xA, 0xB}, 4, []byte{0xA, 0xB, 0xFF, 0xFF}, slave.EOWMoreData},
		{"master stops early", []byte{0xA, 0xB, 0xC}, 1, []byte{0xA}, slave.EOWTooManyData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, s, bus := setup(t, 8)
			require.NoError(t, m.SendStart())
			_, err := m.ReadFrom(serviceAddr, tt.read)
			require.NoError(t, err)
			bus.Pump()
			require.True(t, s.WriteBufferEmpty())
			assert.True(t, m.IsBusy(), "master is held while the slave prepares its answer")

			_, err = s.WriteBuffer(tt.staged)
			require.NoError(t, err)
			m.WaitWhileBusy(time.Millisecond)
			require.True(t, m.EORBufferFull())

			dst := make([]byte, tt.read)
			_, err = m.ReadBuffer(dst)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dst)
			assert.Equal(t, tt.state, s.State())
			m.SendStop()
		})
	}
}

func TestSlave_Serve(t *testing.T) {
	m, s, _ := setup(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, func(req []byte) []byte {
			if req == nil {
				return []byte("idle")
			}
			return []byte{byte(len(req)), req[0], req[len(req)-1]}
		})
	}()

	// the request spans two buffer fills
	require.NoError(t, m.SendStart())
	_, err := m.WriteTo(serviceAddr, []byte("hello!"))
	require.NoError(t, err)
	m.WaitWhileBusy(100 * time.Millisecond)
	require.True(t, m.EOW())
	m.SendStop()

	require.NoError(t, m.SendStart())
	_, err = m.ReadFrom(serviceAddr, 3)
	require.NoError(t, err)
	m.WaitWhileBusy(100 * time.Millisecond)
	require.True(t, m.EORBufferFull())
	reply := make([]byte, 3)
	_, err = m.ReadBuffer(reply)
	require.NoError(t, err)
	m.SendStop()
	assert.Equal(t, []byte{6, 'h', '!'}, reply)

	require.NoError(t, m.SendStart())
	_, err = m.ReadFrom(serviceAddr, 4)
	require.NoError(t, err)
	m.WaitWhileBusy(100 * time.Millisecond)
	require.True(t, m.EORBufferFull())
	reply = make([]byte, 4)
	_, err = m.ReadBuffer(reply)
	require.NoError(t, err)
	m.SendStop()
	assert.Equal(t, "idle", string(reply))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
