// Package sim is a software two-wire bus. Its master and slave ports
// implement the engine hardware interfaces and its peers model devices, so
// the engines run on a host and in tests without a microcontroller.
//
// Primitives never complete synchronously: they latch an action which the
// bus resolves in Pump, and interrupts are delivered from Pump as well.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/twi"
	"periph.io/x/conn/v3/physic"
)

const DefaultCPU = 16 * physic.MegaHertz

type Opts struct {
	CPU      physic.Frequency
	Logger   *slog.Logger
	MaxSteps int
}

type Opt func(*Opts)

// WithCPU sets the clock the bit rate generator divides.
func WithCPU(f physic.Frequency) Opt {
	return func(o *Opts) {
		o.CPU = f
	}
}

func WithLogger(log *slog.Logger) Opt {
	return func(o *Opts) {
		o.Logger = log
	}
}

// WithMaxSteps bounds the work done by a single Pump.
func WithMaxSteps(n int) Opt {
	return func(o *Opts) {
		o.MaxSteps = n
	}
}

type Bus struct {
	config Opts
	log    *slog.Logger

	pumpMx sync.Mutex

	mx     sync.Mutex
	master *MasterPort
	slaves []*SlavePort
	peers  []Peer
}

func NewBus(opts ...Opt) *Bus {
	config := Opts{
		CPU:      DefaultCPU,
		Logger:   slog.Default(),
		MaxSteps: 100000,
	}
	for _, opt := range opts {
		opt(&config)
	}
	b := &Bus{
		config: config,
		log:    config.Logger.With("bus", "sim"),
	}
	b.master = &MasterPort{bus: b, status: twi.EventNone}
	return b
}

// Master returns the port a master engine drives.
func (b *Bus) Master() *MasterPort {
	return b.master
}

// NewSlave adds a slave port. It answers its address once Listen is called.
func (b *Bus) NewSlave() *SlavePort {
	b.mx.Lock()
	defer b.mx.Unlock()
	p := &SlavePort{bus: b, status: twi.EventNone}
	b.slaves = append(b.slaves, p)
	return p
}

// Attach connects a device model.
func (b *Bus) Attach(p Peer) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.lookup(p.Address()) != nil {
		return fmt.Errorf("address %s already in use", p.Address())
	}
	b.peers = append(b.peers, p)
	b.log.Debug("peer attached", "address", p.Address())
	return nil
}

func (b *Bus) Detach(addr twi.Address) {
	b.mx.Lock()
	defer b.mx.Unlock()
	for i, p := range b.peers {
		if p.Address() == addr {
			b.peers = append(b.peers[:i], b.peers[i+1:]...)
			return
		}
	}
}

// Addresses lists the addresses answered on the bus.
func (b *Bus) Addresses() []twi.Address {
	b.mx.Lock()
	defer b.mx.Unlock()
	var out []twi.Address
	for _, p := range b.peers {
		out = append(out, p.Address())
	}
	for _, s := range b.slaves {
		if s.listening {
			out = append(out, s.addr)
		}
	}
	return out
}

// lookup must be called with mx held.
func (b *Bus) lookup(addr twi.Address) Peer {
	for _, p := range b.peers {
		if p.Address() == addr {
			return p
		}
	}
	for _, s := range b.slaves {
		if s.listening && s.addr == addr {
			return s
		}
	}
	return nil
}

// Pump resolves pending bus actions and delivers interrupts until nothing
// moves. It returns the number of steps taken.
func (b *Bus) Pump() int {
	b.pumpMx.Lock()
	defer b.pumpMx.Unlock()
	steps := 0
	for ; steps < b.config.MaxSteps; steps++ {
		b.mx.Lock()
		progressed := b.master.resolve()
		var isrs []func()
		for _, s := range b.slaves {
			if s.pending() {
				isrs = append(isrs, s.isr)
			}
		}
		if b.master.pending() {
			isrs = append(isrs, b.master.isr)
		}
		b.mx.Unlock()
		for _, isr := range isrs {
			isr()
		}
		if !progressed && len(isrs) == 0 {
			return steps
		}
	}
	b.log.Warn("pump step limit reached", "steps", steps)
	return steps
}

// Sleep lets bus time pass. It fits master.WithSleep.
func (b *Bus) Sleep(time.Duration) {
	b.Pump()
}

// Run pumps the bus every tick until ctx is done.
func (b *Bus) Run(ctx context.Context, tick time.Duration) error {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			b.Pump()
		}
	}
}
