// Package i2c connects the transaction level bus interfaces used by device
// drivers to real and engine driven buses.
package i2c

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/scan"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var (
	_ twi.I2CBus  = &HostBus{}
	_ i2c.Bus     = &HostBus{}
	_ scan.Prober = &HostBus{}
)

// HostBus is a bus of the host, usually /dev/i2c-N on linux.
type HostBus struct {
	bus i2c.BusCloser
	log *slog.Logger
}

// NewHostBus opens dev, or the first bus found when dev is empty.
func NewHostBus(dev string, log *slog.Logger) (*HostBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		log.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return newHostBus(bus, log), nil
}

func newHostBus(bus i2c.BusCloser, log *slog.Logger) *HostBus {
	return &HostBus{
		bus: bus,
		log: log.With("bus", bus.String()),
	}
}

func (b *HostBus) String() string {
	return b.bus.String()
}

func (b *HostBus) Tx(addr uint16, w, r []byte) error {
	return b.bus.Tx(addr, w, r)
}

func (b *HostBus) SetSpeed(f physic.Frequency) error {
	return b.bus.SetSpeed(f)
}

func (b *HostBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), nil, buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *HostBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *HostBus) Release(ctx context.Context) error {
	return nil
}

// Probe reads a single byte from addr; most kernel drivers refuse empty
// transfers. A failed read counts as no device.
func (b *HostBus) Probe(ctx context.Context, addr twi.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := b.bus.Tx(uint16(addr), nil, make([]byte, 1))
	if err != nil {
		b.log.Debug("no answer", "address", addr, "error", err)
		return false, nil
	}
	return true, nil
}

func (b *HostBus) Close() error {
	return b.bus.Close()
}
