package twi

import (
	"context"
)

type BusReader interface {
	Read(ctx context.Context, buffer []byte) error
}

type BusWriter interface {
	Write(ctx context.Context, buffer []byte) error
}

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is the transaction level view of a bus used by device drivers.
// Every call is a complete transfer (START ... STOP).
type I2CBus interface {
	AddressableReader
	AddressableWriter
}

type I2CDevice interface {
	BusReader
	BusWriter
}

// Group is the coarse classification of an engine state.
type Group uint8

const (
	// GroupIdle means no transaction is open. Error states are always idle.
	GroupIdle Group = iota
	// GroupBusy means the interrupt handler will advance the transaction.
	GroupBusy
	// GroupWaiting means the foreground must supply or drain data.
	GroupWaiting
)

func (g Group) String() string {
	switch g {
	case GroupIdle:
		return "idle"
	case GroupBusy:
		return "busy"
	case GroupWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// Transaction is the shape shared by the master and slave engines.
// The transition tables are not shared.
type Transaction interface {
	IsIdle() bool
	IsBusy() bool
	IsWaiting() bool
	HasError() bool
	Err() error
	ReadBuffer(dst []byte) (int, error)
	HandleBusEvent()
}
