package i2c

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/master"
	"github.com/mklimuk/twi/scan"
	"github.com/mklimuk/twi/stream"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"
)

var (
	_ twi.I2CBus  = &EngineBus{}
	_ i2c.Bus     = &EngineBus{}
	_ drivers.I2C = &EngineBus{}
	_ scan.Prober = &EngineBus{}
)

// EngineBus runs complete transfers on the master engine so periph, tinygo
// and gobot device drivers can use it.
//
// Writes of any length travel in one transfer. Reads longer than the engine
// buffer are split into consecutive reads joined by repeated starts;
// register mapped devices continue from their address pointer.
type EngineBus struct {
	mx   sync.Mutex
	m    *master.Master
	opts []stream.Opt
}

func NewEngineBus(m *master.Master, opts ...stream.Opt) *EngineBus {
	return &EngineBus{m: m, opts: opts}
}

func (b *EngineBus) String() string {
	return "twi"
}

func (b *EngineBus) SetSpeed(f physic.Frequency) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.m.SetClock(f)
}

// Tx writes w and then reads r from addr. Both empty make an address only
// transfer.
func (b *EngineBus) Tx(addr uint16, w, r []byte) error {
	return b.TxContext(context.Background(), addr, w, r)
}

func (b *EngineBus) TxContext(ctx context.Context, addr uint16, w, r []byte) error {
	if addr > uint16(twi.MaxAddress) {
		return fmt.Errorf("%w: %#x", twi.ErrAddress, addr)
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	s, err := stream.Open(ctx, b.m, twi.Address(addr), b.opts...)
	if err != nil {
		return err
	}
	defer s.Close()
	limit := b.m.BufferSize()
	if len(w) == 0 && len(r) == 0 {
		return s.Write(ctx, nil)
	}
	for len(w) > 0 {
		n := min(len(w), limit)
		err = s.Write(ctx, w[:n])
		if err != nil {
			return err
		}
		w = w[n:]
	}
	for len(r) > 0 {
		n := min(len(r), limit)
		err = s.Read(ctx, r[:n])
		if err != nil {
			return err
		}
		r = r[n:]
	}
	return nil
}

func (b *EngineBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.TxContext(ctx, uint16(address), nil, buffer)
	if err != nil {
		return fmt.Errorf("could not read from %#02x: %w", address, err)
	}
	return nil
}

func (b *EngineBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.TxContext(ctx, uint16(address), buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to %#02x: %w", address, err)
	}
	return nil
}

// Release frees the bus if a transfer was left open.
func (b *EngineBus) Release(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.m.SendStop()
	return nil
}

func (b *EngineBus) Probe(ctx context.Context, addr twi.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.m.Probe(addr), nil
}

// Engine returns the master the bus runs on.
func (b *EngineBus) Engine() *master.Master {
	return b.m
}
