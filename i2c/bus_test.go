package i2c

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestHostBus(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x48, W: []byte{0x01, 0x60}},
			{Addr: 0x48, R: []byte{0x19, 0x80}},
			{Addr: 0x48, R: []byte{0x00}},
		},
		DontPanic: true,
	}
	b := newHostBus(playback, quiet)
	ctx := context.Background()

	require.NoError(t, b.WriteToAddr(ctx, 0x48, []byte{0x01, 0x60}))
	buf := make([]byte, 2)
	require.NoError(t, b.ReadFromAddr(ctx, 0x48, buf))
	assert.Equal(t, []byte{0x19, 0x80}, buf)

	found, err := b.Probe(ctx, 0x48)
	require.NoError(t, err)
	assert.True(t, found)

	// playback is exhausted: the bus reports an error, the probe no device
	found, err = b.Probe(ctx, 0x49)
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, "playback", b.String())
	assert.NoError(t, b.Close())
}

func TestHostBus_ReadError(t *testing.T) {
	b := newHostBus(&i2ctest.Playback{DontPanic: true}, quiet)
	err := b.ReadFromAddr(context.Background(), 0x48, make([]byte, 1))
	assert.ErrorContains(t, err, "could not read from i2c bus 48")
}
