// Package scan looks for devices acknowledging their address on a bus.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/master"
)

var ErrRange = errors.New("invalid address range")

// Prober tells whether a device answers addr.
type Prober interface {
	Probe(ctx context.Context, addr twi.Address) (bool, error)
}

type ProberFunc func(ctx context.Context, addr twi.Address) (bool, error)

func (f ProberFunc) Probe(ctx context.Context, addr twi.Address) (bool, error) {
	return f(ctx, addr)
}

// Engine probes through the master engine with an empty write.
func Engine(m *master.Master) Prober {
	return ProberFunc(func(_ context.Context, addr twi.Address) (bool, error) {
		return m.Probe(addr), nil
	})
}

type Opts struct {
	Attempts int
	Delay    time.Duration
	Logger   *slog.Logger
	OnResult func(addr twi.Address, found bool)
}

type Opt func(*Opts)

// WithAttempts probes every address up to n times; one acknowledge is enough.
func WithAttempts(n int) Opt {
	return func(o *Opts) {
		o.Attempts = n
	}
}

// WithDelay pauses between two addresses.
func WithDelay(d time.Duration) Opt {
	return func(o *Opts) {
		o.Delay = d
	}
}

func WithLogger(log *slog.Logger) Opt {
	return func(o *Opts) {
		o.Logger = log
	}
}

// WithReport calls fn after every probed address.
func WithReport(fn func(addr twi.Address, found bool)) Opt {
	return func(o *Opts) {
		o.OnResult = fn
	}
}

type Scanner struct {
	p      Prober
	config Opts
	log    *slog.Logger
}

func New(p Prober, opts ...Opt) *Scanner {
	config := Opts{
		Attempts: 1,
		Logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Attempts < 1 {
		config.Attempts = 1
	}
	return &Scanner{p: p, config: config, log: config.Logger}
}

// Scan probes from..to, both included, and returns the addresses found.
func (s *Scanner) Scan(ctx context.Context, from, to twi.Address) ([]twi.Address, error) {
	if from > to || !to.Valid() {
		return nil, fmt.Errorf("%w: %s..%s", ErrRange, from, to)
	}
	var found []twi.Address
	for addr := int(from); addr <= int(to); addr++ {
		a := twi.Address(addr)
		ok, err := s.probe(ctx, a)
		if err != nil {
			return found, fmt.Errorf("could not probe %s: %w", a, err)
		}
		s.log.Debug("probed", "address", a, "found", ok)
		if s.config.OnResult != nil {
			s.config.OnResult(a, ok)
		}
		if ok {
			found = append(found, a)
		}
		if s.config.Delay > 0 && addr < int(to) {
			select {
			case <-ctx.Done():
				return found, ctx.Err()
			case <-time.After(s.config.Delay):
			}
		}
	}
	return found, nil
}

func (s *Scanner) probe(ctx context.Context, addr twi.Address) (bool, error) {
	for range s.config.Attempts {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := s.p.Probe(ctx, addr)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
