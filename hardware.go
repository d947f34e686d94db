package twi

import (
	"periph.io/x/conn/v3/physic"
)

// Hardware holds the primitives shared by both bus roles.
//
// Implementations latch bus events and deliver them by calling the engine's
// HandleBusEvent from their own context while the event interrupt is enabled.
// They must never call back into the engine from inside a primitive.
type Hardware interface {
	Enable()
	Disable()
	InterruptEnable()
	InterruptDisable()
	// Status returns the event code of the last completed protocol step.
	Status() Event
	// Data returns the last byte received.
	Data() byte
	// ReceiveAck releases the bus to receive one byte and acknowledge it.
	ReceiveAck()
	// ReceiveNack releases the bus to receive one byte and not acknowledge it.
	ReceiveNack()
	RecoverFromBusError()
}

// MasterHardware is consumed by the master engine.
type MasterHardware interface {
	Hardware
	SetClock(f physic.Frequency) error
	Start()
	RepeatedStart()
	Stop()
	Transmit(b byte)
	// Reset brings the peripheral back to its power-on state.
	Reset()
}

// SlaveHardware is consumed by the slave engine.
type SlaveHardware interface {
	Hardware
	// Listen registers the own address and starts acknowledging it.
	Listen(addr Address)
	// TransmitAck sends b and expects the master to acknowledge it.
	TransmitAck(b byte)
	// TransmitNack sends b as the last byte, expecting a NACK.
	TransmitNack(b byte)
	// NotAddressed switches to not-addressed slave mode; the own address is still recognised.
	NotAddressed()
}
