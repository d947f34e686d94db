// Package memory accesses register mapped devices over the master engine:
// a write selects the register, following bytes are read or written from
// there on.
package memory

import (
	"context"
	"encoding"
	"fmt"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/master"
	"github.com/mklimuk/twi/stream"
)

// Device is a device with 8 bit register addresses, like most sensors and
// real time clocks.
type Device struct {
	m    *master.Master
	addr twi.Address
	opts []stream.Opt
}

func New(m *master.Master, addr twi.Address, opts ...stream.Opt) *Device {
	return &Device{m: m, addr: addr, opts: opts}
}

func (d *Device) Address() twi.Address {
	return d.addr
}

// ReadAt fills p from consecutive registers starting at reg.
func (d *Device) ReadAt(ctx context.Context, reg byte, p []byte) error {
	return d.do(ctx, func(s *stream.Stream) error {
		err := s.Write(ctx, []byte{reg})
		if err != nil {
			return err
		}
		return s.Read(ctx, p)
	})
}

// WriteAt stores p into consecutive registers starting at reg.
func (d *Device) WriteAt(ctx context.Context, reg byte, p []byte) error {
	return d.do(ctx, func(s *stream.Stream) error {
		err := s.Write(ctx, []byte{reg})
		if err != nil {
			return err
		}
		if len(p) == 0 {
			return nil
		}
		return s.Write(ctx, p)
	})
}

// Unmarshal reads size bytes from reg into v.
func (d *Device) Unmarshal(ctx context.Context, reg byte, size int, v encoding.BinaryUnmarshaler) error {
	buf := make([]byte, size)
	err := d.ReadAt(ctx, reg, buf)
	if err != nil {
		return err
	}
	err = v.UnmarshalBinary(buf)
	if err != nil {
		return fmt.Errorf("could not decode register %#02x of %s: %w", reg, d.addr, err)
	}
	return nil
}

// Marshal writes the encoded v from reg on.
func (d *Device) Marshal(ctx context.Context, reg byte, v encoding.BinaryMarshaler) error {
	buf, err := v.MarshalBinary()
	if err != nil {
		return fmt.Errorf("could not encode register %#02x of %s: %w", reg, d.addr, err)
	}
	return d.WriteAt(ctx, reg, buf)
}

// Read returns the register value at reg in the device byte order.
func Read[T stream.Fixed](ctx context.Context, d *Device, reg byte) (T, error) {
	var v T
	err := d.do(ctx, func(s *stream.Stream) error {
		err := s.Write(ctx, []byte{reg})
		if err != nil {
			return err
		}
		v, err = stream.ReadValue[T](ctx, s)
		return err
	})
	return v, err
}

// Write stores v at reg in the device byte order.
func Write[T stream.Fixed](ctx context.Context, d *Device, reg byte, v T) error {
	return d.do(ctx, func(s *stream.Stream) error {
		err := s.Write(ctx, []byte{reg})
		if err != nil {
			return err
		}
		return stream.WriteValue(ctx, s, v)
	})
}

func (d *Device) do(ctx context.Context, fn func(s *stream.Stream) error) error {
	s, err := stream.Open(ctx, d.m, d.addr, d.opts...)
	if err != nil {
		return err
	}
	err = fn(s)
	cerr := s.Close()
	if err != nil {
		return err
	}
	return cerr
}
