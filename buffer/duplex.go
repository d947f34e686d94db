package buffer

import "errors"

var ErrMode = errors.New("buffer: wrong direction")

// Mode is the direction a Duplex buffer is currently serving.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeInput
	ModeOutput
)

func (m Mode) String() string {
	switch m {
	case ModeInput:
		return "input"
	case ModeOutput:
		return "output"
	default:
		return "none"
	}
}

// Duplex is a single ring reused as either an input or an output queue,
// never both at once. Switching direction discards the content.
type Duplex struct {
	ring *Ring
	mode Mode
}

func NewDuplex(capacity int) *Duplex {
	return &Duplex{ring: New(capacity)}
}

func (d *Duplex) Mode() Mode {
	return d.mode
}

func (d *Duplex) ResetAsInput() {
	d.ring.Reset()
	d.mode = ModeInput
}

func (d *Duplex) ResetAsOutput() {
	d.ring.Reset()
	d.mode = ModeOutput
}

// Clear discards the content and keeps the direction.
func (d *Duplex) Clear() {
	d.ring.Reset()
}

func (d *Duplex) Cap() int       { return d.ring.Cap() }
func (d *Duplex) Len() int       { return d.ring.Len() }
func (d *Duplex) IsEmpty() bool  { return d.ring.IsEmpty() }
func (d *Duplex) IsFull() bool   { return d.ring.IsFull() }
func (d *Duplex) Available() int { return d.ring.Available() }

// PutIn stores a byte received from the bus.
func (d *Duplex) PutIn(b byte) error {
	if d.mode != ModeInput {
		return ErrMode
	}
	return d.ring.WriteByte(b)
}

// ReadIn drains received bytes into p.
func (d *Duplex) ReadIn(p []byte) (int, error) {
	if d.mode != ModeInput {
		return 0, ErrMode
	}
	return d.ring.Read(p), nil
}

// WriteOut stages all of p for transmission or nothing.
func (d *Duplex) WriteOut(p []byte) (int, error) {
	if d.mode != ModeOutput {
		return 0, ErrMode
	}
	return d.ring.Write(p)
}

// NextOut pops the next byte to transmit.
func (d *Duplex) NextOut() (byte, error) {
	if d.mode != ModeOutput {
		return 0, ErrMode
	}
	return d.ring.ReadByte()
}
