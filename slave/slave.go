// Package slave implements the interrupt driven bus slave engine. Once
// turned on it keeps listening to its address; foreground code drains what
// a master wrote with ReadBuffer and answers reads with WriteBuffer.
package slave

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/buffer"
)

const DefaultBufferSize = 32

type Opts struct {
	BufferSize   int
	Logger       *slog.Logger
	Sleep        func(time.Duration)
	PollInterval time.Duration
}

type Opt func(*Opts)

// WithBufferSize sets the duplex buffer capacity. Sizes below one keep the
// default.
func WithBufferSize(size int) Opt {
	return func(o *Opts) {
		o.BufferSize = size
	}
}

func WithLogger(log *slog.Logger) Opt {
	return func(o *Opts) {
		o.Logger = log
	}
}

// WithSleep sets how Serve waits between two polls.
func WithSleep(sleep func(time.Duration)) Opt {
	return func(o *Opts) {
		o.Sleep = sleep
	}
}

func WithPollInterval(d time.Duration) Opt {
	return func(o *Opts) {
		o.PollInterval = d
	}
}

type Slave struct {
	hw     twi.SlaveHardware
	log    *slog.Logger
	sleep  func(time.Duration)
	poll   time.Duration
	bufCap int

	mx    sync.Mutex
	buf   *buffer.Duplex
	state State
	addr  twi.Address
}

func New(hw twi.SlaveHardware, opts ...Opt) *Slave {
	config := Opts{
		BufferSize:   DefaultBufferSize,
		Logger:       slog.Default(),
		Sleep:        time.Sleep,
		PollInterval: 100 * time.Microsecond,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.BufferSize < 1 {
		config.BufferSize = DefaultBufferSize
	}
	return &Slave{
		hw:     hw,
		log:    config.Logger.With("engine", "slave"),
		sleep:  config.Sleep,
		poll:   config.PollInterval,
		bufCap: config.BufferSize,
		buf:    buffer.NewDuplex(config.BufferSize),
	}
}

// TurnOn starts listening to addr.
func (s *Slave) TurnOn(addr twi.Address) error {
	if !addr.Valid() {
		return fmt.Errorf("%w: %s", twi.ErrAddress, addr)
	}
	s.mx.Lock()
	defer s.mx.Unlock()
	s.addr = addr
	s.hw.Listen(addr)
	s.hw.Enable()
	s.buf.ResetAsInput()
	s.setState(Listening)
	s.hw.InterruptEnable()
	s.log.Debug("slave listening", "address", addr)
	return nil
}

func (s *Slave) Address() twi.Address {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.addr
}

func (s *Slave) BufferSize() int {
	return s.bufCap
}

// ReadBuffer drains bytes written by the master. Draining a full buffer
// lets the master continue; draining the last byte after STOP returns the
// engine to listening. Nothing is returned while a transfer is in flight.
func (s *Slave) ReadBuffer(dst []byte) (int, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	switch s.state {
	case RecBufferFull:
		n, _ := s.buf.ReadIn(dst)
		if n > 0 {
			s.setState(Receiving)
			s.hw.ReceiveAck()
			s.hw.InterruptEnable()
		}
		return n, nil
	case EOR:
		n, _ := s.buf.ReadIn(dst)
		if s.buf.IsEmpty() {
			s.setState(Listening)
			s.hw.NotAddressed()
			s.hw.InterruptEnable()
		}
		return n, nil
	case WriteBufferEmpty:
		return 0, s.invalidState("read buffer")
	default:
		return 0, nil
	}
}

// WriteBuffer answers a pending read with src. The master is held until it
// is called.
func (s *Slave) WriteBuffer(src []byte) (int, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.state != WriteBufferEmpty || len(src) == 0 {
		return 0, s.invalidState("write buffer")
	}
	if len(src) > s.buf.Cap() {
		return 0, fmt.Errorf("reply of %d bytes: %w", len(src), twi.ErrBufferSize)
	}
	_, _ = s.buf.WriteOut(src)
	s.setState(Transmitting)
	s.sendNext()
	// the first byte must be latched before the interrupt can fire
	s.hw.InterruptEnable()
	return len(src), nil
}

// StopTransmission drops whatever is in progress and listens again.
func (s *Slave) StopTransmission() {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.buf.ResetAsInput()
	s.hw.NotAddressed()
	s.hw.InterruptEnable()
	s.setState(Listening)
}

func (s *Slave) State() State {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.state
}

func (s *Slave) String() string {
	return s.State().String()
}

func (s *Slave) IsIdle() bool      { return s.State().Group() == twi.GroupIdle }
func (s *Slave) IsBusy() bool      { return s.State().Group() == twi.GroupBusy }
func (s *Slave) IsWaiting() bool   { return s.State().Group() == twi.GroupWaiting }
func (s *Slave) HasError() bool    { return s.State().IsError() }
func (s *Slave) Err() error        { return s.State().Err() }
func (s *Slave) IsListening() bool { return s.State() == Listening }
func (s *Slave) EOR() bool         { return s.State() == EOR }
func (s *Slave) RecBufferFull() bool {
	return s.State() == RecBufferFull
}
func (s *Slave) WriteBufferEmpty() bool {
	return s.State() == WriteBufferEmpty
}

func (s *Slave) setState(st State) {
	if st != s.state {
		s.log.Debug("state change", "from", s.state, "to", st)
	}
	s.state = st
}

// invalidState records a precondition violation and keeps an earlier error.
// A transfer addressed to us is dropped so it cannot carry on behind the
// error; the engine keeps listening for the next one.
func (s *Slave) invalidState(op string) error {
	current := s.state
	if !current.IsError() {
		if current.Group() != twi.GroupIdle {
			s.buf.Clear()
			s.hw.NotAddressed()
			s.hw.InterruptEnable()
		}
		s.setState(ProgError)
	}
	s.log.Warn("operation not allowed", "op", op, "state", current)
	return fmt.Errorf("%s in state %s: %w", op, current, twi.ErrInvalidState)
}
