// Package stream wraps the master engine in blocking, transaction scoped
// reads and writes.
//
//	s, err := stream.Open(ctx, m, 0x68)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	err = s.Write(ctx, []byte{0x00}) // register pointer
//	sec, err := stream.ReadValue[uint8](ctx, s)
//
// Consecutive writes travel in one transfer; every read is its own
// transfer, introduced by a repeated start.
package stream

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/master"
)

var _ twi.I2CDevice = (*Stream)(nil)

const waitSlice = 100 * time.Microsecond

type Opts struct {
	Timeout   time.Duration
	ByteOrder binary.ByteOrder
}

type Opt func(*Opts)

// WithTimeout bounds how long a read or write waits for the engine.
func WithTimeout(d time.Duration) Opt {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// WithByteOrder sets how ReadValue and WriteValue lay out multi-byte values.
func WithByteOrder(order binary.ByteOrder) Opt {
	return func(o *Opts) {
		o.ByteOrder = order
	}
}

type Stream struct {
	m      *master.Master
	addr   twi.Address
	config Opts
}

// Open starts a transaction with addr, with a repeated start when the engine
// still holds the bus from a previous transfer. An engine left in an error
// state is reset first.
func Open(ctx context.Context, m *master.Master, addr twi.Address, opts ...Opt) (*Stream, error) {
	config := Opts{
		Timeout:   10 * time.Millisecond,
		ByteOrder: binary.LittleEndian,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if !addr.Valid() {
		return nil, fmt.Errorf("%w: %s", twi.ErrAddress, addr)
	}
	s := &Stream{m: m, addr: addr, config: config}
	err := s.start(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", addr, err)
	}
	return s, nil
}

func (s *Stream) Address() twi.Address {
	return s.addr
}

// Read fills p in a single read transfer.
func (s *Stream) Read(ctx context.Context, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	err := s.start(ctx)
	if err != nil {
		return fmt.Errorf("read from %s: %w", s.addr, err)
	}
	_, err = s.m.ReadFrom(s.addr, len(p))
	if err != nil {
		return fmt.Errorf("read from %s: %w", s.addr, err)
	}
	err = s.wait(ctx)
	if err != nil {
		return fmt.Errorf("read from %s: %w", s.addr, err)
	}
	if s.m.State() != master.EORBufferFull {
		return fmt.Errorf("read from %s: %w", s.addr, s.failure())
	}
	n, err := s.m.ReadBuffer(p)
	if err != nil {
		return fmt.Errorf("read from %s: %w", s.addr, err)
	}
	if n != len(p) {
		return fmt.Errorf("read from %s: short read %d of %d bytes", s.addr, n, len(p))
	}
	return nil
}

// Write sends p. Writes following each other without a read in between
// continue the same transfer.
func (s *Stream) Write(ctx context.Context, p []byte) error {
	var err error
	switch s.m.State() {
	case master.SlaW, master.Transmitting, master.EOW:
		_, err = s.m.Write(p)
	default:
		err = s.start(ctx)
		if err == nil {
			_, err = s.m.WriteTo(s.addr, p)
		}
	}
	if err != nil {
		return fmt.Errorf("write to %s: %w", s.addr, err)
	}
	err = s.wait(ctx)
	if err != nil {
		return fmt.Errorf("write to %s: %w", s.addr, err)
	}
	if s.m.State() != master.EOW {
		return fmt.Errorf("write to %s: %w", s.addr, s.failure())
	}
	return nil
}

// Close waits for the transfer in flight and releases the bus.
func (s *Stream) Close() error {
	if s.m.IsIdle() {
		return nil
	}
	err := s.wait(context.Background())
	s.m.SendStop()
	return err
}

func (s *Stream) State() master.State { return s.m.State() }
func (s *Stream) IsIdle() bool        { return s.m.IsIdle() }
func (s *Stream) IsBusy() bool        { return s.m.IsBusy() }
func (s *Stream) IsWaiting() bool     { return s.m.IsWaiting() }
func (s *Stream) HasError() bool      { return s.m.HasError() }
func (s *Stream) Err() error          { return s.m.Err() }
func (s *Stream) NoResponse() bool    { return s.m.NoResponse() }
func (s *Stream) EOW() bool           { return s.m.EOW() }
func (s *Stream) EOR() bool           { return s.m.EOR() }

func (s *Stream) start(ctx context.Context) error {
	err := s.wait(ctx)
	if err != nil {
		return err
	}
	switch s.m.State() {
	case master.ReadOrWrite:
		return nil
	case master.OK:
		return s.m.SendStart()
	case master.EOW, master.EOR:
		return s.m.SendRepeatedStart()
	default:
		s.m.Reset()
		return s.m.SendStart()
	}
}

func (s *Stream) wait(ctx context.Context) error {
	budget := s.config.Timeout
	for s.transferring() {
		if budget <= 0 {
			return fmt.Errorf("%w after %s in state %s", twi.ErrTimeout, s.config.Timeout, s.m.State())
		}
		err := ctx.Err()
		if err != nil {
			return err
		}
		slice := min(budget, waitSlice)
		left := s.m.WaitWhileBusy(slice)
		budget -= slice - left
	}
	return nil
}

// transferring reports bytes moving on the wire. A transaction opened but
// not yet given a direction is busy without anything to wait for.
func (s *Stream) transferring() bool {
	st := s.m.State()
	return st.Group() == twi.GroupBusy && st != master.ReadOrWrite
}

func (s *Stream) failure() error {
	st := s.m.State()
	if err := st.Err(); err != nil {
		return err
	}
	return fmt.Errorf("transfer ended in state %s: %w", st, twi.ErrInvalidState)
}
