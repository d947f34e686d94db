package sim

import (
	"sync"

	"github.com/mklimuk/twi"
)

type MemoryOpts struct {
	AddressWidth int
	PageSize     int
}

type MemoryOpt func(*MemoryOpts)

// WithAddressWidth sets the number of word address bytes (1 or 2) sent
// after SLA+W.
func WithAddressWidth(n int) MemoryOpt {
	return func(o *MemoryOpts) {
		o.AddressWidth = n
	}
}

// WithPageSize makes writes wrap inside a page like serial EEPROMs do.
func WithPageSize(n int) MemoryOpt {
	return func(o *MemoryOpts) {
		o.PageSize = n
	}
}

// Memory is a register mapped device: the first bytes of a write set the
// word address, further bytes are stored from there on, reads continue from
// the current word address.
type Memory struct {
	mx     sync.Mutex
	addr   twi.Address
	config MemoryOpts
	mem    []byte

	ptr      int
	pageBase int
	word     int
	received int // word address bytes received in the current write
	writes   int
}

func NewMemory(addr twi.Address, size int, opts ...MemoryOpt) *Memory {
	config := MemoryOpts{AddressWidth: 1}
	for _, opt := range opts {
		opt(&config)
	}
	return &Memory{
		addr:   addr,
		config: config,
		mem:    make([]byte, size),
	}
}

func (m *Memory) Address() twi.Address { return m.addr }
func (m *Memory) Ready() bool          { return true }

func (m *Memory) Begin(read bool) bool {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.begin(read)
	return true
}

func (m *Memory) begin(read bool) {
	if !read {
		m.received = 0
		m.word = 0
		m.writes++
	}
}

func (m *Memory) Receive(b byte) bool {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.receive(b)
	return true
}

func (m *Memory) receive(b byte) {
	if m.received < m.config.AddressWidth {
		m.word = m.word<<8 | int(b)
		m.received++
		if m.received == m.config.AddressWidth {
			m.ptr = m.word % len(m.mem)
			m.pageBase = m.ptr
			if m.config.PageSize > 0 {
				m.pageBase = m.ptr - m.ptr%m.config.PageSize
			}
		}
		return
	}
	m.mem[m.ptr] = b
	if m.config.PageSize > 0 {
		m.ptr = m.pageBase + (m.ptr+1-m.pageBase)%m.config.PageSize
		return
	}
	m.ptr = (m.ptr + 1) % len(m.mem)
}

func (m *Memory) Send() byte {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.send()
}

func (m *Memory) send() byte {
	b := m.mem[m.ptr]
	m.ptr = (m.ptr + 1) % len(m.mem)
	return b
}

func (m *Memory) Acked(bool) {}
func (m *Memory) End()       {}

// Bytes returns a copy of the memory content.
func (m *Memory) Bytes() []byte {
	m.mx.Lock()
	defer m.mx.Unlock()
	return append([]byte(nil), m.mem...)
}

// Load overwrites memory from offset without going through the bus.
func (m *Memory) Load(offset int, data []byte) {
	m.mx.Lock()
	defer m.mx.Unlock()
	copy(m.mem[offset:], data)
}

// Writes counts write transactions addressed to the device.
func (m *Memory) Writes() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.writes
}
