// Package buffer provides the bounded byte queues staged between the bus
// engines and foreground code.
package buffer

import "errors"

var ErrFull = errors.New("buffer: capacity exceeded")
var ErrEmpty = errors.New("buffer: empty")

// Ring is a fixed capacity circular byte queue. It never grows and never
// truncates: a write that does not fit is rejected as a whole.
//
// Ring is not safe for concurrent use; the engines guard it with their
// critical section.
type Ring struct {
	buf []byte
	rd  uint // monotonic
	wr  uint // monotonic
}

// New returns a ring holding up to capacity bytes.
func New(capacity int) *Ring {
	if capacity < 1 {
		panic("buffer: capacity must be positive")
	}
	return &Ring{buf: make([]byte, capacity)}
}

func (r *Ring) Cap() int {
	return len(r.buf)
}

// Len returns the number of bytes queued.
func (r *Ring) Len() int {
	return int(r.wr - r.rd)
}

// Available returns the remaining capacity.
func (r *Ring) Available() int {
	return r.Cap() - r.Len()
}

func (r *Ring) IsEmpty() bool {
	return r.rd == r.wr
}

func (r *Ring) IsFull() bool {
	return r.Len() == r.Cap()
}

func (r *Ring) Reset() {
	r.rd = 0
	r.wr = 0
}

func (r *Ring) WriteByte(b byte) error {
	if r.IsFull() {
		return ErrFull
	}
	r.buf[r.wr%uint(len(r.buf))] = b
	r.wr++
	return nil
}

// Write queues all of p or nothing.
func (r *Ring) Write(p []byte) (int, error) {
	if len(p) > r.Available() {
		return 0, ErrFull
	}
	size := uint(len(r.buf))
	idx := r.wr % size
	n := copy(r.buf[idx:], p)
	copy(r.buf, p[n:])
	r.wr += uint(len(p))
	return len(p), nil
}

func (r *Ring) ReadByte() (byte, error) {
	if r.IsEmpty() {
		return 0, ErrEmpty
	}
	b := r.buf[r.rd%uint(len(r.buf))]
	r.rd++
	if r.rd == r.wr {
		r.Reset()
	}
	return b, nil
}

// Read drains up to len(p) bytes. It returns 0 when the ring is empty.
func (r *Ring) Read(p []byte) int {
	n := r.Len()
	if n > len(p) {
		n = len(p)
	}
	if n == 0 {
		return 0
	}
	size := uint(len(r.buf))
	idx := r.rd % size
	first := copy(p[:n], r.buf[idx:])
	if first < n {
		copy(p[first:n], r.buf[:n-first])
	}
	r.rd += uint(n)
	if r.rd == r.wr {
		r.Reset()
	}
	return n
}
