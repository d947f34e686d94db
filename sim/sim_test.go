package sim_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/master"
	"github.com/mklimuk/twi/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func write(p sim.Peer, data ...byte) {
	p.Begin(false)
	for _, b := range data {
		p.Receive(b)
	}
	p.End()
}

func read(p sim.Peer, n int) []byte {
	p.Begin(true)
	out := make([]byte, n)
	for i := range out {
		out[i] = p.Send()
		p.Acked(i < n-1)
	}
	p.End()
	return out
}

func TestMemory_PageWrap(t *testing.T) {
	m := sim.NewMemory(0x50, 64, sim.WithAddressWidth(2), sim.WithPageSize(8))
	write(m, 0x00, 0x06, 1, 2, 3, 4)
	assert.Equal(t, []byte{3, 4, 0, 0, 0, 0, 1, 2}, m.Bytes()[:8])

	// reads cross pages
	write(m, 0x00, 0x06)
	assert.Equal(t, []byte{1, 2, 0, 0}, read(m, 4))
	assert.Equal(t, 2, m.Writes())
}

func TestMemory_Load(t *testing.T) {
	m := sim.NewMemory(0x50, 16)
	m.Load(14, []byte{0xAA, 0xBB})
	write(m, 14)
	assert.Equal(t, []byte{0xAA, 0xBB, 0x00}, read(m, 3), "reads wrap at the end")
}

func TestLoopback(t *testing.T) {
	l := sim.NewLoopback(0x22)
	write(l, 1, 2)
	assert.Equal(t, []byte{1, 2}, l.Written())
	assert.Equal(t, []byte{1, 2, 0xFF}, read(l, 3))
}

func TestDS1307(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d := sim.NewDS1307(func() time.Time { return now })

	// 2024-02-29 23:59:58, thursday
	write(d, 0x00, 0x58, 0x59, 0x23, 0x05, 0x29, 0x02, 0x24)
	now = now.Add(3 * time.Second)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 1, 0, time.UTC), d.Time())

	write(d, 0x00)
	regs := read(d, 7)
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x06, 0x01, 0x03, 0x24}, regs)

	// clock halt stops time
	write(d, 0x00, 0x80|0x01)
	now = now.Add(time.Hour)
	write(d, 0x00)
	assert.Equal(t, byte(0x81), read(d, 1)[0])
}

func TestBus_Peers(t *testing.T) {
	bus := sim.NewBus(sim.WithLogger(quiet))
	require.NoError(t, bus.Attach(sim.NewLoopback(0x22)))
	require.NoError(t, bus.Attach(sim.NewMemory(0x50, 16)))
	assert.Error(t, bus.Attach(sim.NewLoopback(0x22)))

	port := bus.NewSlave()
	port.Listen(0x10)
	assert.ElementsMatch(t, []twi.Address{0x22, 0x50, 0x10}, bus.Addresses())

	bus.Detach(0x22)
	assert.ElementsMatch(t, []twi.Address{0x50, 0x10}, bus.Addresses())
}

func TestBus_Run(t *testing.T) {
	bus := sim.NewBus(sim.WithLogger(quiet))
	mem := sim.NewMemory(0x50, 16)
	require.NoError(t, bus.Attach(mem))
	m := master.New(bus.Master(), master.WithLogger(quiet))
	bus.Master().OnInterrupt(m.HandleBusEvent)
	require.NoError(t, m.TurnOn(100*physic.KiloHertz))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- bus.Run(ctx, 20*time.Microsecond)
	}()

	// the engine sleeps for real while the bus runs on its own
	require.NoError(t, m.SendStart())
	_, err := m.WriteTo(0x50, []byte{0x04, 0xCA, 0xFE})
	require.NoError(t, err)
	m.WaitWhileBusy(time.Second)
	require.True(t, m.EOW())
	m.SendStop()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []byte{0xCA, 0xFE}, mem.Bytes()[4:6])
}

func TestBus_ClockRate(t *testing.T) {
	bus := sim.NewBus(sim.WithCPU(8*physic.MegaHertz), sim.WithLogger(quiet))
	require.NoError(t, bus.Master().SetClock(400*physic.KiloHertz))
	_, rate := bus.Master().Clock()
	assert.Equal(t, twi.BitRate{Divider: 2, Prescaler: 1}, rate)
	assert.ErrorIs(t, bus.Master().SetClock(physic.MegaHertz), twi.ErrClockRate)
}
