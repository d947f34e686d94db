package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/config"
	"github.com/mklimuk/twi/sim"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
		err  bool
	}{
		{in: "0a0b", want: []byte{0x0a, 0x0b}},
		{in: "0xDEAD", want: []byte{0xde, 0xad}},
		{in: "01 02 03", want: []byte{1, 2, 3}},
		{in: "", err: true},
		{in: "abc", err: true},
		{in: "zz", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseHex(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPeer(t *testing.T) {
	p, err := newPeer(config.Peer{Kind: config.PeerMemory, Address: 0x50})
	require.NoError(t, err)
	assert.Len(t, p.(*sim.Memory).Bytes(), 256)

	p, err = newPeer(config.Peer{Kind: config.PeerDS1307, Address: sim.DS1307Address})
	require.NoError(t, err)
	assert.Equal(t, sim.DS1307Address, p.Address())

	_, err = newPeer(config.Peer{Kind: config.PeerDS1307, Address: 0x69})
	assert.Error(t, err)
	_, err = newPeer(config.Peer{Kind: "adc", Address: 0x20})
	assert.Error(t, err)
}

func TestSimBackend(t *testing.T) {
	b := &backend{cfg: config.Default()}
	require.NoError(t, b.openSim(quiet))

	found, err := b.bus.Probe(context.Background(), 0x50)
	require.NoError(t, err)
	assert.True(t, found)
	assert.ElementsMatch(t, []twi.Address{0x50, 0x68}, b.wire.Addresses())
	f, rate := b.wire.Master().Clock()
	assert.Equal(t, config.Default().Clock.Hz(), f)
	assert.Equal(t, twi.BitRate{Divider: 72, Prescaler: 1}, rate)
}

func TestEcho(t *testing.T) {
	b := &backend{cfg: config.Default()}
	require.NoError(t, b.openSim(quiet))

	reply, err := echo(context.Background(), b, []byte("ping"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "gnip", string(reply))
}
