package sim

import (
	"sync"

	"github.com/mklimuk/twi"
	"periph.io/x/conn/v3/physic"
)

var (
	_ twi.MasterHardware = (*Recorder)(nil)
	_ twi.SlaveHardware  = (*Recorder)(nil)
)

// Recorder is scripted hardware: tests set the next status and data byte,
// call the engine's HandleBusEvent and inspect the primitives it invoked.
type Recorder struct {
	mx       sync.Mutex
	log      callLog
	status   twi.Event
	data     byte
	ClockErr error
}

func NewRecorder() *Recorder {
	return &Recorder{status: twi.EventNone}
}

// Next sets what Status and Data return.
func (r *Recorder) Next(ev twi.Event, data byte) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.status = ev
	r.data = data
}

func (r *Recorder) Calls() []Call {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.log.snapshot()
}

func (r *Recorder) ResetCalls() {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.log.calls = nil
}

func (r *Recorder) Status() twi.Event {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.status
}

func (r *Recorder) Data() byte {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.data
}

func (r *Recorder) SetClock(physic.Frequency) error {
	r.record(OpSetClock, 0)
	return r.ClockErr
}

func (r *Recorder) Enable()              { r.record(OpEnable, 0) }
func (r *Recorder) Disable()             { r.record(OpDisable, 0) }
func (r *Recorder) InterruptEnable()     { r.record(OpInterruptEnable, 0) }
func (r *Recorder) InterruptDisable()    { r.record(OpInterruptDisable, 0) }
func (r *Recorder) ReceiveAck()          { r.record(OpReceiveAck, 0) }
func (r *Recorder) ReceiveNack()         { r.record(OpReceiveNack, 0) }
func (r *Recorder) RecoverFromBusError() { r.record(OpRecover, 0) }
func (r *Recorder) Start()               { r.record(OpStart, 0) }
func (r *Recorder) RepeatedStart()       { r.record(OpRepeatedStart, 0) }
func (r *Recorder) Stop()                { r.record(OpStop, 0) }
func (r *Recorder) Transmit(b byte)      { r.record(OpTransmit, b) }
func (r *Recorder) Reset()               { r.record(OpReset, 0) }
func (r *Recorder) Listen(a twi.Address) { r.record(OpListen, byte(a)) }
func (r *Recorder) TransmitAck(b byte)   { r.record(OpTransmitAck, b) }
func (r *Recorder) TransmitNack(b byte)  { r.record(OpTransmitNack, b) }
func (r *Recorder) NotAddressed()        { r.record(OpNotAddressed, 0) }

func (r *Recorder) record(op Op, arg byte) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.log.record(op, arg)
}
