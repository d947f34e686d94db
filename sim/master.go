package sim

import (
	"github.com/mklimuk/twi"
	"periph.io/x/conn/v3/physic"
)

var _ twi.MasterHardware = (*MasterPort)(nil)

type actionKind uint8

const (
	actStart actionKind = iota
	actRepeatedStart
	actStop
	actTransmit
	actReceive
)

type action struct {
	kind actionKind
	b    byte
	ack  bool
}

type phase uint8

const (
	phaseIdle phase = iota
	phaseAddress
	phaseWrite
	phaseRead
)

// MasterPort is the master side of the simulated wire.
// All fields are guarded by the bus lock.
type MasterPort struct {
	bus *Bus
	isr func()
	log callLog

	enabled    bool
	intEnabled bool
	flag       bool
	status     twi.Event
	data       byte

	queue  []action
	phase  phase
	target Peer

	clock physic.Frequency
	rate  twi.BitRate
}

// OnInterrupt installs the bus event handler, usually the engine's HandleBusEvent.
func (p *MasterPort) OnInterrupt(isr func()) {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	p.isr = isr
}

// Calls returns the primitives invoked so far.
func (p *MasterPort) Calls() []Call {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	return p.log.snapshot()
}

func (p *MasterPort) ResetCalls() {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	p.log.calls = nil
}

// Clock returns the configured SCL frequency and its bit rate setting.
func (p *MasterPort) Clock() (physic.Frequency, twi.BitRate) {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	return p.clock, p.rate
}

// InjectBusError latches a bus error as if the lines had been disturbed.
func (p *MasterPort) InjectBusError() {
	p.Inject(twi.EventBusError)
}

// Inject latches an arbitrary status code.
func (p *MasterPort) Inject(ev twi.Event) {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	p.queue = nil
	p.latch(ev)
}

func (p *MasterPort) Enable() {
	p.do(OpEnable, 0, func() { p.enabled = true })
}

func (p *MasterPort) Disable() {
	p.do(OpDisable, 0, func() { p.enabled = false })
}

func (p *MasterPort) InterruptEnable() {
	p.do(OpInterruptEnable, 0, func() { p.intEnabled = true })
}

func (p *MasterPort) InterruptDisable() {
	p.do(OpInterruptDisable, 0, func() { p.intEnabled = false })
}

func (p *MasterPort) Status() twi.Event {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	return p.status
}

func (p *MasterPort) Data() byte {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	return p.data
}

func (p *MasterPort) SetClock(f physic.Frequency) error {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	p.log.record(OpSetClock, 0)
	rate, err := twi.ComputeBitRate(p.bus.config.CPU, f)
	if err != nil {
		return err
	}
	p.clock = f
	p.rate = rate
	return nil
}

func (p *MasterPort) Start() {
	p.enqueue(OpStart, action{kind: actStart})
}

func (p *MasterPort) RepeatedStart() {
	p.enqueue(OpRepeatedStart, action{kind: actRepeatedStart})
}

func (p *MasterPort) Stop() {
	p.enqueue(OpStop, action{kind: actStop})
}

func (p *MasterPort) Transmit(b byte) {
	p.enqueue(OpTransmit, action{kind: actTransmit, b: b})
}

func (p *MasterPort) ReceiveAck() {
	p.enqueue(OpReceiveAck, action{kind: actReceive, ack: true})
}

func (p *MasterPort) ReceiveNack() {
	p.enqueue(OpReceiveNack, action{kind: actReceive, ack: false})
}

func (p *MasterPort) RecoverFromBusError() {
	p.do(OpRecover, 0, p.release)
}

func (p *MasterPort) Reset() {
	p.do(OpReset, 0, func() {
		p.release()
		p.enabled = false
		p.intEnabled = false
	})
}

func (p *MasterPort) do(op Op, arg byte, fn func()) {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	p.log.record(op, arg)
	fn()
}

// enqueue clears the interrupt flag and schedules a bus action.
func (p *MasterPort) enqueue(op Op, a action) {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	p.log.record(op, a.b)
	p.flag = false
	p.queue = append(p.queue, a)
}

// release frees the lines and forgets any transfer in progress.
func (p *MasterPort) release() {
	if p.target != nil {
		p.target.End()
	}
	p.target = nil
	p.phase = phaseIdle
	p.queue = nil
	p.flag = false
	p.status = twi.EventNone
}

func (p *MasterPort) latch(ev twi.Event) {
	p.status = ev
	p.flag = true
}

func (p *MasterPort) pending() bool {
	return p.enabled && p.intEnabled && p.flag && p.isr != nil
}

// resolve plays queued actions on the wire while the involved peer keeps up.
// Called with the bus lock held.
func (p *MasterPort) resolve() bool {
	progressed := false
	for len(p.queue) > 0 && p.enabled {
		a := p.queue[0]
		peer := p.target
		if a.kind == actTransmit && p.phase == phaseAddress {
			peer = p.bus.lookup(twi.Address(a.b >> 1))
		}
		if peer != nil && !peer.Ready() {
			break
		}
		p.queue = p.queue[1:]
		p.apply(a, peer)
		progressed = true
	}
	return progressed
}

func (p *MasterPort) apply(a action, peer Peer) {
	switch a.kind {
	case actStart, actRepeatedStart:
		if p.target != nil {
			p.target.End()
			p.target = nil
		}
		p.phase = phaseAddress
		if a.kind == actStart {
			p.latch(twi.EventStart)
		} else {
			p.latch(twi.EventRepeatedStart)
		}

	case actStop:
		if p.target != nil {
			p.target.End()
			p.target = nil
		}
		p.phase = phaseIdle
		p.status = twi.EventNone

	case actTransmit:
		switch p.phase {
		case phaseAddress:
			read := a.b&1 == 1
			acked := peer != nil && peer.Begin(read)
			switch {
			case acked && read:
				p.target, p.phase = peer, phaseRead
				p.latch(twi.EventSlaRAck)
			case acked:
				p.target, p.phase = peer, phaseWrite
				p.latch(twi.EventSlaWAck)
			case read:
				p.phase = phaseIdle
				p.latch(twi.EventSlaRNack)
			default:
				p.phase = phaseIdle
				p.latch(twi.EventSlaWNack)
			}
		case phaseWrite:
			if p.target.Receive(a.b) {
				p.latch(twi.EventDataSentAck)
			} else {
				p.latch(twi.EventDataSentNack)
			}
		default:
			// nobody drives ACK
			p.latch(twi.EventDataSentNack)
		}

	case actReceive:
		p.data = 0xFF
		if p.phase == phaseRead && p.target != nil {
			p.data = p.target.Send()
			p.target.Acked(a.ack)
		}
		if a.ack {
			p.latch(twi.EventDataRecvAck)
		} else {
			p.latch(twi.EventDataRecvNack)
		}
	}
}
