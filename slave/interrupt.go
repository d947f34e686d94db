package slave

import (
	"github.com/mklimuk/twi"
)

// HandleBusEvent reacts to the event latched by the hardware.
func (s *Slave) HandleBusEvent() {
	s.mx.Lock()
	defer s.mx.Unlock()

	ev := s.hw.Status()
	if s.state.IsError() && !addressing(ev) {
		// only a new addressing or a bus error leaves an error state
		s.log.Debug("bus event ignored", "event", ev, "state", s.state)
		s.hw.NotAddressed()
		return
	}
	switch ev {
	// receiver
	case twi.EventSlaveSlaW:
		s.buf.ResetAsInput()
		s.setState(Receiving)
		s.hw.ReceiveAck()
	case twi.EventSlaveDataRecvAck:
		err := s.buf.PutIn(s.hw.Data())
		if err != nil {
			s.log.Error("dropped received byte", "error", err)
		}
		if s.buf.IsFull() {
			// hold the master until the buffer is drained
			s.hw.InterruptDisable()
			s.setState(RecBufferFull)
			return
		}
		s.hw.ReceiveAck()
	case twi.EventSlaveDataRecvNack:
		s.hw.RecoverFromBusError()
		s.setState(EORDataNack)
	case twi.EventSlaveStop:
		s.hw.InterruptDisable()
		s.setState(EOR)

	// transmitter
	case twi.EventSlaveSlaR:
		s.hw.InterruptDisable()
		s.buf.ResetAsOutput()
		s.setState(WriteBufferEmpty)
	case twi.EventSlaveDataSentAck:
		if s.buf.IsEmpty() {
			s.moreDataWanted()
			return
		}
		s.sendNext()
	case twi.EventSlaveLastDataAck:
		s.moreDataWanted()
	case twi.EventSlaveDataSentNack:
		if s.buf.IsEmpty() {
			s.setState(EOW)
		} else {
			s.buf.Clear()
			s.setState(EOWTooManyData)
		}
		s.hw.NotAddressed()

	case twi.EventBusError:
		s.hw.RecoverFromBusError()
		s.setState(BusError)
	default:
		s.log.Warn("unexpected bus event", "event", ev, "state", s.state)
		s.hw.NotAddressed()
		s.setState(UnknownError)
	}
}

func addressing(ev twi.Event) bool {
	return ev == twi.EventSlaveSlaW || ev == twi.EventSlaveSlaR || ev == twi.EventBusError
}

// moreDataWanted ends a read the master wanted to continue past the staged
// bytes. The master reads idle bus levels from here on.
func (s *Slave) moreDataWanted() {
	s.setState(EOWMoreData)
	s.hw.NotAddressed()
}

func (s *Slave) sendNext() {
	b, err := s.buf.NextOut()
	if err != nil {
		return
	}
	if s.buf.IsEmpty() {
		s.hw.TransmitNack(b)
		return
	}
	s.hw.TransmitAck(b)
}
