package i2c

import (
	"testing"

	"github.com/mklimuk/twi/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestConnector(t *testing.T) {
	c := NewConnector(&i2ctest.Playback{DontPanic: true})
	assert.Equal(t, 0, c.DefaultI2cBus())

	_, err := c.GetI2cConnection(0x20, 1)
	assert.ErrorContains(t, err, "no i2c bus 1")
	_, err = c.GetI2cConnection(0x80, 0)
	assert.ErrorContains(t, err, "invalid i2c address")
	conn, err := c.GetI2cConnection(0x20, 0)
	require.NoError(t, err)
	assert.NoError(t, conn.Close())
}

func TestConnection(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x20, W: []byte{0x06}, R: []byte{0x34, 0x12}},
			{Addr: 0x20, W: []byte{0x06, 0xCD, 0xAB}},
			{Addr: 0x20, W: []byte{0x01}, R: []byte{0x7F}},
			{Addr: 0x20, W: []byte{0x02, 0x55}},
			{Addr: 0x20, R: []byte{0x01, 0x02, 0x03}},
		},
	}
	conn, err := NewConnector(playback).GetI2cConnection(0x20, 0)
	require.NoError(t, err)

	w, err := conn.ReadWordData(0x06)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), w)
	require.NoError(t, conn.WriteWordData(0x06, 0xABCD))

	b, err := conn.ReadByteData(0x01)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x7F), b)
	require.NoError(t, conn.WriteByteData(0x02, 0x55))

	buf := make([]byte, 3)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3}, buf)
	assert.NoError(t, playback.Close())
}

func TestConnector_GenericDriver(t *testing.T) {
	b, bus := newEngineBus(t)
	mem := sim.NewMemory(0x28, 16)
	require.NoError(t, bus.Attach(mem))

	board := gobot.NewGenericDriver(NewConnector(b), "register", 0x28)
	require.NoError(t, board.Start())
	defer func() { _ = board.Halt() }()

	require.NoError(t, board.WriteByteData(0x04, 0xAA))
	require.NoError(t, board.Write([]byte{0x04}))
	data := make([]byte, 1)
	require.NoError(t, board.Read(data))
	assert.Equal(t, byte(0xAA), data[0])
	assert.Equal(t, byte(0xAA), mem.Bytes()[4])
}
