package slave

import (
	"io"
	"log/slog"
	"testing"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newScripted(t *testing.T, size int) (*Slave, *sim.Recorder) {
	t.Helper()
	hw := sim.NewRecorder()
	s := New(hw, WithLogger(quiet), WithBufferSize(size))
	require.NoError(t, s.TurnOn(0x10))
	hw.ResetCalls()
	return s, hw
}

func event(s *Slave, hw *sim.Recorder, ev twi.Event, data byte) {
	hw.Next(ev, data)
	s.HandleBusEvent()
}

func TestSlave_TurnOn(t *testing.T) {
	hw := sim.NewRecorder()
	s := New(hw, WithLogger(quiet))
	assert.ErrorIs(t, s.TurnOn(0x80), twi.ErrAddress)

	require.NoError(t, s.TurnOn(0x10))
	assert.Equal(t, twi.Address(0x10), s.Address())
	assert.True(t, s.IsListening())
	assert.Equal(t, []sim.Call{
		{Op: sim.OpListen, Arg: 0x10},
		{Op: sim.OpEnable},
		{Op: sim.OpInterruptEnable},
	}, hw.Calls())
}

func TestSlave_ReceiveIntoFullBuffer(t *testing.T) {
	s, hw := newScripted(t, 5)
	event(s, hw, twi.EventSlaveSlaW, 0)
	assert.Equal(t, Receiving, s.State())
	for i := range 5 {
		event(s, hw, twi.EventSlaveDataRecvAck, byte(i+1))
	}
	assert.Equal(t, RecBufferFull, s.State())
	calls := hw.Calls()
	assert.Equal(t, 5, sim.Count(calls, sim.OpReceiveAck), "the fifth byte is not acknowledged before draining")
	assert.Equal(t, sim.OpInterruptDisable, calls[len(calls)-1].Op)

	dst := make([]byte, 8)
	n, err := s.ReadBuffer(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, dst[:n])
	assert.Equal(t, Receiving, s.State())

	event(s, hw, twi.EventSlaveStop, 0)
	assert.Equal(t, EOR, s.State())
	n, err = s.ReadBuffer(dst)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, s.IsListening())
}

func TestSlave_Transmit(t *testing.T) {
	s, hw := newScripted(t, 8)
	event(s, hw, twi.EventSlaveSlaR, 0)
	assert.Equal(t, WriteBufferEmpty, s.State())

	n, err := s.WriteBuffer([]byte{0xA, 0xB})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	event(s, hw, twi.EventSlaveDataSentAck, 0)
	event(s, hw, twi.EventSlaveDataSentNack, 0)
	assert.Equal(t, EOW, s.State())
	assert.False(t, s.HasError())

	assert.Equal(t, []sim.Call{
		{Op: sim.OpInterruptDisable},
		{Op: sim.OpTransmitAck, Arg: 0xA},
		{Op: sim.OpInterruptEnable},
		{Op: sim.OpTransmitNack, Arg: 0xB},
		{Op: sim.OpNotAddressed},
	}, hw.Calls())
}

func TestSlave_TransmitEndings(t *testing.T) {
	tests := []struct {
		name   string
		events []twi.Event
		state  State
	}{
		{"master wants more", []twi.Event{twi.EventSlaveDataSentAck, twi.EventSlaveLastDataAck}, EOWMoreData},
		{"master stops early", []twi.Event{twi.EventSlaveDataSentNack}, EOWTooManyData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, hw := newScripted(t, 8)
			event(s, hw, twi.EventSlaveSlaR, 0)
			_, err := s.WriteBuffer([]byte{1, 2})
			require.NoError(t, err)
			for _, ev := range tt.events {
				event(s, hw, ev, 0)
			}
			assert.Equal(t, tt.state, s.State())
			assert.True(t, s.IsIdle())
			assert.Equal(t, sim.OpNotAddressed, hw.Calls()[len(hw.Calls())-1].Op)
		})
	}
}

func TestSlave_WriteBufferPreconditions(t *testing.T) {
	s, hw := newScripted(t, 4)
	_, err := s.WriteBuffer([]byte{1})
	assert.ErrorIs(t, err, twi.ErrInvalidState)
	assert.Equal(t, ProgError, s.State())
	assert.Empty(t, hw.Calls())

	s.StopTransmission()
	event(s, hw, twi.EventSlaveSlaR, 0)
	_, err = s.WriteBuffer([]byte{1, 2, 3, 4, 5})
	assert.ErrorIs(t, err, twi.ErrBufferSize)
	assert.Equal(t, WriteBufferEmpty, s.State())

	_, err = s.ReadBuffer(make([]byte, 1))
	assert.ErrorIs(t, err, twi.ErrInvalidState)
}

func TestSlave_WriteBufferWhileReceiving(t *testing.T) {
	s, hw := newScripted(t, 4)
	event(s, hw, twi.EventSlaveSlaW, 0)
	event(s, hw, twi.EventSlaveDataRecvAck, 0x01)
	hw.ResetCalls()

	_, err := s.WriteBuffer([]byte{1})
	assert.ErrorIs(t, err, twi.ErrInvalidState)
	assert.Equal(t, []sim.Call{{Op: sim.OpNotAddressed}, {Op: sim.OpInterruptEnable}}, hw.Calls())

	event(s, hw, twi.EventSlaveDataRecvAck, 0x02)
	event(s, hw, twi.EventSlaveStop, 0)
	assert.Equal(t, ProgError, s.State())

	// the next master is served again
	event(s, hw, twi.EventSlaveSlaW, 0)
	assert.Equal(t, Receiving, s.State())
}

func TestSlave_BufferSizeDefault(t *testing.T) {
	s := New(sim.NewRecorder(), WithLogger(quiet), WithBufferSize(-1))
	assert.Equal(t, DefaultBufferSize, s.BufferSize())
}

func TestSlave_Errors(t *testing.T) {
	tests := []struct {
		ev    twi.Event
		state State
		err   error
		op    sim.Op
	}{
		{twi.EventSlaveDataRecvNack, EORDataNack, twi.ErrDataNack, sim.OpRecover},
		{twi.EventBusError, BusError, twi.ErrBusError, sim.OpRecover},
		{twi.EventStart, UnknownError, twi.ErrUnknownStatus, sim.OpNotAddressed},
	}
	for _, tt := range tests {
		t.Run(tt.ev.String(), func(t *testing.T) {
			s, hw := newScripted(t, 4)
			event(s, hw, twi.EventSlaveSlaW, 0)
			hw.ResetCalls()
			event(s, hw, tt.ev, 0)
			assert.Equal(t, tt.state, s.State())
			assert.ErrorIs(t, s.Err(), tt.err)
			assert.Equal(t, []sim.Call{{Op: tt.op}}, hw.Calls())

			s.StopTransmission()
			assert.True(t, s.IsListening())
			assert.NoError(t, s.Err())
		})
	}
}
