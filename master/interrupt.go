package master

import (
	"github.com/mklimuk/twi"
)

// HandleBusEvent advances the transaction after a bus event. The hardware
// calls it from its interrupt context while the event interrupt is enabled.
func (m *Master) HandleBusEvent() {
	m.mx.Lock()
	defer m.mx.Unlock()

	ev := m.hw.Status()
	if m.state.IsError() {
		// the transfer was cut; a late event must not replace the error
		m.log.Debug("bus event ignored", "event", ev, "state", m.state)
		m.hw.InterruptDisable()
		return
	}
	switch ev {
	case twi.EventStart, twi.EventRepeatedStart:
		switch m.state {
		case SlaW:
			m.hw.Transmit(m.addr.Write())
		case SlaR:
			m.hw.Transmit(m.addr.Read())
		default:
			m.hw.InterruptDisable()
			m.setState(ProgError)
		}

	// transmitter
	case twi.EventSlaWAck:
		m.setState(Transmitting)
		m.sendNext()
	case twi.EventDataSentAck:
		m.sendNext()
	case twi.EventDataSentNack:
		m.hw.Stop()
		m.hw.InterruptDisable()
		m.setState(EOWDataNack)

	case twi.EventSlaWNack, twi.EventSlaRNack:
		m.hw.Stop()
		m.hw.InterruptDisable()
		m.setState(NoResponse)

	// receiver
	case twi.EventSlaRAck:
		m.setState(Receiving)
		m.receiveNext()
	case twi.EventDataRecvAck:
		m.store()
		m.receiveNext()
	case twi.EventDataRecvNack:
		m.store()
		m.hw.InterruptDisable()
		m.setState(EORBufferFull)

	case twi.EventBusError:
		m.hw.RecoverFromBusError()
		m.hw.InterruptDisable()
		m.setState(BusError)

	default:
		m.log.Warn("unexpected bus event", "event", ev, "state", m.state)
		m.hw.InterruptDisable()
		m.setState(UnknownError)
	}
}

// sendNext transmits the next staged byte or ends the write phase.
func (m *Master) sendNext() {
	b, err := m.buf.ReadByte()
	if err != nil {
		m.hw.InterruptDisable()
		m.setState(EOW)
		return
	}
	m.hw.Transmit(b)
}

// receiveNext asks for one more byte; the last expected one is NACKed.
func (m *Master) receiveNext() {
	if m.nread <= 1 {
		m.hw.ReceiveNack()
		return
	}
	m.hw.ReceiveAck()
}

func (m *Master) store() {
	err := m.buf.WriteByte(m.hw.Data())
	if err != nil {
		m.log.Error("dropped received byte", "error", err)
	}
	m.nread--
}
