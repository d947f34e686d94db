package twi

import (
	"errors"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

var (
	// ErrNoResponse is returned when no device acknowledged its address.
	ErrNoResponse = errors.New("no device acknowledged the address")
	// ErrDataNack is returned when the peer rejected a data byte.
	ErrDataNack = errors.New("data byte not acknowledged")
	// ErrBufferSize is returned when a request does not fit in the engine buffer.
	ErrBufferSize = errors.New("request exceeds buffer capacity")
	ErrBusError   = errors.New("bus error")
	// ErrUnknownStatus is returned for a hardware status the engine does not handle.
	ErrUnknownStatus = errors.New("unknown bus status")
	// ErrInvalidState is returned when an operation is not legal in the current state.
	ErrInvalidState = errors.New("operation not allowed in current state")
	ErrTimeout      = errors.New("bus transaction timed out")
	ErrClockRate    = errors.New("unsupported clock rate")
	ErrAddress      = errors.New("invalid 7-bit address")
)
