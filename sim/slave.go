package sim

import (
	"github.com/mklimuk/twi"
)

var (
	_ twi.SlaveHardware = (*SlavePort)(nil)
	_ Peer              = (*SlavePort)(nil)
)

type slaveMode uint8

const (
	slaveNotAddressed slaveMode = iota
	slaveReceiving
	slaveTransmitting
)

// SlavePort is the slave side of the simulated wire. The bus reaches it as a
// peer; the slave engine drives it as hardware. While its interrupt flag is
// set the port holds the clock low and the master waits.
type SlavePort struct {
	bus *Bus
	isr func()
	log callLog

	enabled    bool
	intEnabled bool
	flag       bool
	status     twi.Event
	data       byte

	listening bool
	addr      twi.Address
	ack       bool // acknowledge the next received byte
	mode      slaveMode
	out       byte
	last      bool
}

func (p *SlavePort) OnInterrupt(isr func()) {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	p.isr = isr
}

func (p *SlavePort) Calls() []Call {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	return p.log.snapshot()
}

func (p *SlavePort) InjectBusError() {
	p.Inject(twi.EventBusError)
}

func (p *SlavePort) Inject(ev twi.Event) {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	p.latch(ev)
}

func (p *SlavePort) Enable() {
	p.do(OpEnable, 0, func() { p.enabled = true })
}

func (p *SlavePort) Disable() {
	p.do(OpDisable, 0, func() { p.enabled = false })
}

func (p *SlavePort) InterruptEnable() {
	p.do(OpInterruptEnable, 0, func() { p.intEnabled = true })
}

func (p *SlavePort) InterruptDisable() {
	p.do(OpInterruptDisable, 0, func() { p.intEnabled = false })
}

func (p *SlavePort) Status() twi.Event {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	return p.status
}

func (p *SlavePort) Data() byte {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	return p.data
}

func (p *SlavePort) Listen(addr twi.Address) {
	p.do(OpListen, byte(addr), func() {
		p.addr = addr
		p.listening = true
		p.enabled = true
		p.ack = true
		p.flag = false
		p.mode = slaveNotAddressed
	})
}

func (p *SlavePort) ReceiveAck() {
	p.do(OpReceiveAck, 0, func() {
		p.ack = true
		p.flag = false
	})
}

func (p *SlavePort) ReceiveNack() {
	p.do(OpReceiveNack, 0, func() {
		p.ack = false
		p.flag = false
	})
}

func (p *SlavePort) TransmitAck(b byte) {
	p.do(OpTransmitAck, b, func() {
		p.out, p.last = b, false
		p.flag = false
	})
}

func (p *SlavePort) TransmitNack(b byte) {
	p.do(OpTransmitNack, b, func() {
		p.out, p.last = b, true
		p.flag = false
	})
}

func (p *SlavePort) NotAddressed() {
	p.do(OpNotAddressed, 0, func() {
		p.mode = slaveNotAddressed
		p.ack = true
		p.flag = false
	})
}

func (p *SlavePort) RecoverFromBusError() {
	p.do(OpRecover, 0, func() {
		p.mode = slaveNotAddressed
		p.flag = false
		p.status = twi.EventNone
	})
}

func (p *SlavePort) do(op Op, arg byte, fn func()) {
	p.bus.mx.Lock()
	defer p.bus.mx.Unlock()
	p.log.record(op, arg)
	fn()
}

func (p *SlavePort) latch(ev twi.Event) {
	p.status = ev
	p.flag = true
}

func (p *SlavePort) pending() bool {
	return p.enabled && p.intEnabled && p.flag && p.isr != nil
}

// Peer side, called by the bus with its lock held.

func (p *SlavePort) Address() twi.Address { return p.addr }

func (p *SlavePort) Ready() bool { return !p.flag }

func (p *SlavePort) Begin(read bool) bool {
	if !p.enabled || !p.listening {
		return false
	}
	p.out, p.last = 0xFF, false
	if read {
		p.mode = slaveTransmitting
		p.latch(twi.EventSlaveSlaR)
	} else {
		p.mode = slaveReceiving
		p.latch(twi.EventSlaveSlaW)
	}
	return true
}

func (p *SlavePort) Receive(b byte) bool {
	if p.mode != slaveReceiving {
		return false
	}
	p.data = b
	if p.ack {
		p.latch(twi.EventSlaveDataRecvAck)
		return true
	}
	p.latch(twi.EventSlaveDataRecvNack)
	return false
}

func (p *SlavePort) Send() byte {
	if p.mode != slaveTransmitting {
		return 0xFF
	}
	return p.out
}

func (p *SlavePort) Acked(ack bool) {
	if p.mode != slaveTransmitting {
		return
	}
	switch {
	case !ack:
		p.mode = slaveNotAddressed
		p.latch(twi.EventSlaveDataSentNack)
	case p.last:
		p.mode = slaveNotAddressed
		p.latch(twi.EventSlaveLastDataAck)
	default:
		p.latch(twi.EventSlaveDataSentAck)
	}
}

func (p *SlavePort) End() {
	if p.mode == slaveReceiving {
		p.latch(twi.EventSlaveStop)
	}
	p.mode = slaveNotAddressed
}
