package adapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mklimuk/twi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

// fakePort answers each report with the next scripted response.
type fakePort struct {
	requests  [][]byte
	responses [][]byte
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.requests = append(p.requests, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.responses) == 0 {
		return 0, errors.New("no response")
	}
	copy(b, p.responses[0])
	p.responses = p.responses[1:]
	return len(b), nil
}

func (p *fakePort) Close() error { return nil }

func (p *fakePort) reply(bytes ...byte) {
	r := make([]byte, reportSize)
	copy(r, bytes)
	p.responses = append(p.responses, r)
}

func newAdapter(p *fakePort) *MCP2221 {
	return NewMCP2221(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithResponseWait(0),
		WithPort(func(int) (Port, error) { return p, nil }),
	)
}

func TestMCP2221_Tx(t *testing.T) {
	p := &fakePort{}
	p.reply(cmdWriteNoStop, 0x00)
	p.reply(cmdReadRepeated, 0x00)
	p.reply(cmdGetData, 0x00, 0x00, 2, 0xBE, 0xEF)
	d := newAdapter(p)

	r := make([]byte, 2)
	require.NoError(t, d.Tx(0x50, []byte{0x01, 0x02}, r))
	assert.Equal(t, []byte{0xBE, 0xEF}, r)
	require.Len(t, p.requests, 3)
	assert.Equal(t, []byte{cmdWriteNoStop, 2, 0, 0xA0, 0x01, 0x02}, p.requests[0][:6])
	assert.Equal(t, []byte{cmdReadRepeated, 2, 0, 0xA1}, p.requests[1][:4])
	assert.Equal(t, byte(cmdGetData), p.requests[2][0])
}

func TestMCP2221_Write(t *testing.T) {
	p := &fakePort{}
	p.reply(cmdWrite, 0x00)
	p.reply(cmdWrite, engineBusy)
	d := newAdapter(p)

	require.NoError(t, d.WriteToAddr(context.Background(), 0x20, []byte{0xFF}))
	assert.Equal(t, []byte{cmdWrite, 1, 0, 0x40, 0xFF}, p.requests[0][:5])
	assert.ErrorIs(t, d.WriteToAddr(context.Background(), 0x20, []byte{0xFF}), twi.ErrBusBusy)
	assert.ErrorIs(t, d.WriteToAddr(context.Background(), 0x20, make([]byte, MaxTransfer+1)), twi.ErrBufferSize)
}

func TestMCP2221_ReadSizeMismatch(t *testing.T) {
	p := &fakePort{}
	p.reply(cmdRead, 0x00)
	p.reply(cmdGetData, 0x00, 0x00, 127)
	d := newAdapter(p)

	err := d.ReadFromAddr(context.Background(), 0x20, make([]byte, 4))
	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestMCP2221_Probe(t *testing.T) {
	p := &fakePort{}
	p.reply(cmdRead, 0x00)
	p.reply(cmdGetData, 0x00, 0x00, 1, 0x42)
	p.reply(cmdRead, 0x00)
	p.reply(cmdGetData, getDataFailed)
	p.reply(cmdStatus, 0x00)
	d := newAdapter(p)

	found, err := d.Probe(context.Background(), 0x20)
	require.NoError(t, err)
	assert.True(t, found)
	found, err = d.Probe(context.Background(), 0x21)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, []byte{cmdStatus, 0x00, statusCancel}, p.requests[4][:3])

	_, err = d.Probe(context.Background(), 0x80)
	assert.ErrorIs(t, err, twi.ErrAddress)
}

func TestMCP2221_SetSpeed(t *testing.T) {
	p := &fakePort{}
	p.reply(cmdStatus, 0x00, 0x00, statusSetSpeed)
	p.reply(cmdStatus, 0x00, 0x00, speedRejected)
	d := newAdapter(p)

	require.NoError(t, d.SetSpeed(100*physic.KiloHertz))
	assert.Equal(t, []byte{cmdStatus, 0, 0, statusSetSpeed, 117}, p.requests[0][:5])
	assert.ErrorIs(t, d.SetSpeed(400*physic.KiloHertz), twi.ErrBusBusy)
	assert.ErrorIs(t, d.SetSpeed(10*physic.KiloHertz), twi.ErrClockRate)
}

func TestMCP2221_Status(t *testing.T) {
	p := &fakePort{}
	resp := make([]byte, reportSize)
	resp[0] = cmdStatus
	resp[9], resp[10] = 0x10, 0x00
	resp[11], resp[12] = 0x08, 0x00
	resp[13] = 3
	resp[14] = 117
	resp[15] = 9
	resp[16], resp[17] = 0xA0, 0x00
	resp[25] = 1
	p.responses = append(p.responses, resp)
	d := newAdapter(p)

	status, err := d.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &MCP2221Status{
		I2CDataBufferCounter:   3,
		I2CSpeedDivider:        117,
		I2CTimeout:             9,
		CurrentAddress:         "a000",
		LastWriteRequestedSize: 16,
		LastWriteSentSize:      8,
		ReadPending:            1,
	}, status)
}

func TestMCP2221_Canceled(t *testing.T) {
	d := newAdapter(&fakePort{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Status(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
