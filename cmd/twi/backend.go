package main

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"
	periph "periph.io/x/conn/v3/i2c"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/adapter"
	"github.com/mklimuk/twi/config"
	"github.com/mklimuk/twi/i2c"
	"github.com/mklimuk/twi/master"
	"github.com/mklimuk/twi/scan"
	"github.com/mklimuk/twi/sim"
	"github.com/mklimuk/twi/stream"
)

// Bus is what every backend offers the commands.
type Bus interface {
	periph.Bus
	twi.I2CBus
	scan.Prober
}

type backend struct {
	cfg config.Config
	bus Bus
	// engine and wire are only set for the simulated backend
	engine *master.Master
	wire   *sim.Bus
	close  func() error
}

func openBackend(c *cli.Context) (*backend, error) {
	cfg := appConfig(c)
	log := slog.Default()
	b := &backend{cfg: cfg, close: func() error { return nil }}
	switch cfg.Backend {
	case config.BackendSim:
		err := b.openSim(log)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendHost:
		hb, err := i2c.NewHostBus(cfg.Device, log)
		if err != nil {
			return nil, err
		}
		b.bus = hb
		b.close = hb.Close
	case config.BackendMCP2221:
		a := adapter.NewMCP2221(adapter.WithLogger(log), adapter.WithDevice(cfg.Adapter))
		b.bus = a
		b.close = a.Close
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	err := b.bus.SetSpeed(cfg.Clock.Hz())
	if err != nil {
		log.Warn("could not set bus clock", "clock", cfg.Clock.Hz(), "error", err)
	}
	return b, nil
}

func (b *backend) openSim(log *slog.Logger) error {
	wire := sim.NewBus(sim.WithCPU(b.cfg.Sim.CPU.Hz()), sim.WithLogger(log))
	for _, p := range b.cfg.Sim.Peers {
		peer, err := newPeer(p)
		if err != nil {
			return err
		}
		err = wire.Attach(peer)
		if err != nil {
			return fmt.Errorf("could not attach %s at %s: %w", p.Kind, p.Address, err)
		}
	}
	m := master.New(wire.Master(),
		master.WithBufferSize(b.cfg.Master.BufferSize),
		master.WithLogger(log),
		master.WithSleep(wire.Sleep))
	wire.Master().OnInterrupt(m.HandleBusEvent)
	err := m.TurnOn(b.cfg.Clock.Hz())
	if err != nil {
		return fmt.Errorf("could not start master engine: %w", err)
	}
	b.engine = m
	b.wire = wire
	b.bus = i2c.NewEngineBus(m, b.streamOpts()...)
	return nil
}

func (b *backend) streamOpts() []stream.Opt {
	if b.cfg.Master.Timeout <= 0 {
		return nil
	}
	return []stream.Opt{stream.WithTimeout(b.cfg.Master.Timeout)}
}

func newPeer(p config.Peer) (sim.Peer, error) {
	switch p.Kind {
	case config.PeerLoopback:
		return sim.NewLoopback(p.Address), nil
	case config.PeerMemory:
		size := p.Size
		if size <= 0 {
			size = 256
		}
		var opts []sim.MemoryOpt
		if p.AddressWidth > 0 {
			opts = append(opts, sim.WithAddressWidth(p.AddressWidth))
		}
		if p.PageSize > 0 {
			opts = append(opts, sim.WithPageSize(p.PageSize))
		}
		return sim.NewMemory(p.Address, size, opts...), nil
	case config.PeerDS1307:
		if p.Address != sim.DS1307Address {
			return nil, fmt.Errorf("ds1307 answers at %s only", sim.DS1307Address)
		}
		return sim.NewDS1307(nil), nil
	default:
		return nil, fmt.Errorf("unknown peer kind %q", p.Kind)
	}
}

// withBus opens the backend for the duration of fn.
func withBus(c *cli.Context, fn func(b *backend) error) error {
	b, err := openBackend(c)
	if err != nil {
		return err
	}
	defer func() {
		err := b.close()
		if err != nil {
			slog.Warn("could not close bus", "error", err)
		}
	}()
	return fn(b)
}
