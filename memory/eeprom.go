package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/master"
	"github.com/mklimuk/twi/stream"
)

var ErrOutOfRange = errors.New("access beyond the end of the memory")

// EEPROMConfig describes a 24 series serial EEPROM.
type EEPROMConfig struct {
	Size     int
	PageSize int
	// AddressWidth is the number of word address bytes. Single byte parts
	// larger than 256 bytes take the high address bits from the device
	// address instead.
	AddressWidth int
	// WriteTime bounds the internal write cycle after every page.
	WriteTime time.Duration
}

var (
	Conf24C02  = EEPROMConfig{Size: 256, PageSize: 8, AddressWidth: 1, WriteTime: 5 * time.Millisecond}
	Conf24C16  = EEPROMConfig{Size: 2048, PageSize: 16, AddressWidth: 1, WriteTime: 5 * time.Millisecond}
	Conf24C32  = EEPROMConfig{Size: 4096, PageSize: 32, AddressWidth: 2, WriteTime: 10 * time.Millisecond}
	Conf24C256 = EEPROMConfig{Size: 32768, PageSize: 64, AddressWidth: 2, WriteTime: 5 * time.Millisecond}
)

const pollInterval = 200 * time.Microsecond

type EEPROM struct {
	m      *master.Master
	addr   twi.Address
	config EEPROMConfig
	opts   []stream.Opt
}

func NewEEPROM(m *master.Master, addr twi.Address, config EEPROMConfig, opts ...stream.Opt) *EEPROM {
	return &EEPROM{m: m, addr: addr, config: config, opts: opts}
}

func (e *EEPROM) Size() int {
	return e.config.Size
}

// ReadAt reads len(p) bytes from off on.
func (e *EEPROM) ReadAt(ctx context.Context, off int, p []byte) error {
	if off < 0 || off+len(p) > e.config.Size {
		return fmt.Errorf("read of %d bytes at %#x: %w", len(p), off, ErrOutOfRange)
	}
	limit := e.m.BufferSize()
	for len(p) > 0 {
		n := min(len(p), limit)
		if e.config.AddressWidth == 1 {
			// the word address wraps on the 256 byte block of the device address
			n = min(n, 256-off%256)
		}
		err := e.transfer(ctx, off, func(s *stream.Stream) error {
			return s.Read(ctx, p[:n])
		})
		if err != nil {
			return err
		}
		off += n
		p = p[n:]
	}
	return nil
}

// WriteAt writes p from off on, one page at a time, and waits for the write
// cycle of every page to complete.
func (e *EEPROM) WriteAt(ctx context.Context, off int, p []byte) error {
	if off < 0 || off+len(p) > e.config.Size {
		return fmt.Errorf("write of %d bytes at %#x: %w", len(p), off, ErrOutOfRange)
	}
	limit := e.m.BufferSize() - e.config.AddressWidth
	for len(p) > 0 {
		n := min(len(p), e.config.PageSize-off%e.config.PageSize, limit)
		err := e.transfer(ctx, off, func(s *stream.Stream) error {
			return s.Write(ctx, p[:n])
		})
		if err != nil {
			return err
		}
		err = e.waitWriteCycle(ctx, off)
		if err != nil {
			return err
		}
		off += n
		p = p[n:]
	}
	return nil
}

// transfer selects the word address of off and runs fn in the same
// transaction.
func (e *EEPROM) transfer(ctx context.Context, off int, fn func(s *stream.Stream) error) error {
	s, err := stream.Open(ctx, e.m, e.device(off), e.opts...)
	if err != nil {
		return err
	}
	defer s.Close()
	word := []byte{byte(off)}
	if e.config.AddressWidth == 2 {
		word = []byte{byte(off >> 8), byte(off)}
	}
	err = s.Write(ctx, word)
	if err != nil {
		return err
	}
	return fn(s)
}

func (e *EEPROM) device(off int) twi.Address {
	if e.config.AddressWidth == 1 {
		return e.addr + twi.Address(off>>8)
	}
	return e.addr
}

// waitWriteCycle polls the device until it acknowledges its address again.
func (e *EEPROM) waitWriteCycle(ctx context.Context, off int) error {
	addr := e.device(off)
	deadline := time.Now().Add(e.config.WriteTime)
	for !e.m.Probe(addr) {
		if time.Now().After(deadline) {
			return fmt.Errorf("%s still writing after %s: %w", addr, e.config.WriteTime, twi.ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return nil
}
