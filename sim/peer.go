package sim

import (
	"sync"

	"github.com/mklimuk/twi"
)

// Peer is a device model attached to the simulated wire. The bus calls it
// while holding its lock, one framed byte at a time.
type Peer interface {
	Address() twi.Address
	// Ready is false while the peer holds the clock low.
	Ready() bool
	// Begin is called when the peer's own SLA+W or SLA+R is on the wire.
	// It returns whether the address is acknowledged.
	Begin(read bool) bool
	// Receive takes a byte written by the master and returns the ACK bit.
	Receive(b byte) bool
	// Send returns the next byte the master reads.
	Send() byte
	// Acked tells the peer how the master answered the byte it just sent.
	Acked(ack bool)
	// End is called on STOP or REPEATED START after the peer was addressed.
	End()
}

// Loopback acknowledges everything and echoes back what was last written.
type Loopback struct {
	mx   sync.Mutex
	addr twi.Address
	data []byte
	pos  int
}

func NewLoopback(addr twi.Address) *Loopback {
	return &Loopback{addr: addr}
}

func (l *Loopback) Address() twi.Address { return l.addr }
func (l *Loopback) Ready() bool          { return true }

func (l *Loopback) Begin(read bool) bool {
	l.mx.Lock()
	defer l.mx.Unlock()
	if read {
		l.pos = 0
	} else {
		l.data = l.data[:0]
	}
	return true
}

func (l *Loopback) Receive(b byte) bool {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.data = append(l.data, b)
	return true
}

func (l *Loopback) Send() byte {
	l.mx.Lock()
	defer l.mx.Unlock()
	if l.pos >= len(l.data) {
		return 0xFF
	}
	b := l.data[l.pos]
	l.pos++
	return b
}

func (l *Loopback) Acked(bool) {}
func (l *Loopback) End()       {}

// Written returns a copy of the bytes of the last write.
func (l *Loopback) Written() []byte {
	l.mx.Lock()
	defer l.mx.Unlock()
	return append([]byte(nil), l.data...)
}
