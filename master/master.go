// Package master implements the interrupt driven bus master engine.
//
// Foreground code opens a transaction with SendStart, stages a write with
// WriteTo or requests a read with ReadFrom and then polls the state while the
// hardware delivers bus events to HandleBusEvent:
//
//	m := master.New(hw)
//	_ = m.TurnOn(100 * physic.KiloHertz)
//	_ = m.SendStart()
//	_, _ = m.WriteTo(0x50, []byte{0x00, 0x01})
//	m.WaitWhileBusy(time.Millisecond)
//	m.SendStop()
package master

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/buffer"
	"periph.io/x/conn/v3/physic"
)

const DefaultBufferSize = 32

type Opts struct {
	BufferSize   int
	Logger       *slog.Logger
	Sleep        func(time.Duration)
	ProbeTimeout time.Duration
}

type Opt func(*Opts)

// WithBufferSize sets the transfer buffer capacity. Sizes below one keep the
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

// WithSleep replaces the function used by WaitWhileBusy to let time pass
// between two state checks.
func WithSleep(sleep func(time.Duration)) Opt {
	return func(o *Opts) {
		o.Sleep = sleep
	}
}

func WithProbeTimeout(timeout time.Duration) Opt {
	return func(o *Opts) {
		o.ProbeTimeout = timeout
	}
}

// Master is the bus master engine. One transaction is in flight at a time.
//
// mx is the critical section shared by HandleBusEvent and the foreground
// operations; every field below it is guarded by it.
type Master struct {
	hw           twi.MasterHardware
	log          *slog.Logger
	sleep        func(time.Duration)
	realTime     bool
	probeTimeout time.Duration

	mx    sync.Mutex
	buf   *buffer.Ring
	state State
	addr  twi.Address
	nread int // bytes still expected by the current read
}

func New(hw twi.MasterHardware, opts ...Opt) *Master {
	config := Opts{
		BufferSize:   DefaultBufferSize,
		Logger:       slog.Default(),
		ProbeTimeout: time.Millisecond,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.BufferSize < 1 {
		config.BufferSize = DefaultBufferSize
	}
	realTime := config.Sleep == nil
	if realTime {
		config.Sleep = time.Sleep
	}
	return &Master{
		hw:           hw,
		log:          config.Logger.With("engine", "master"),
		sleep:        config.Sleep,
		realTime:     realTime,
		probeTimeout: config.ProbeTimeout,
		buf:          buffer.New(config.BufferSize),
	}
}

// TurnOn configures the bus clock and enables the hardware.
func (m *Master) TurnOn(f physic.Frequency) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	err := m.hw.SetClock(f)
	if err != nil {
		return fmt.Errorf("could not set bus clock to %s: %w", f, err)
	}
	m.reset()
	m.log.Debug("bus master on", "clock", f)
	return nil
}

// SetClock changes the bus clock between transactions.
func (m *Master) SetClock(f physic.Frequency) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.state != OK {
		return m.invalidState("set clock")
	}
	err := m.hw.SetClock(f)
	if err != nil {
		return fmt.Errorf("could not set bus clock to %s: %w", f, err)
	}
	return nil
}

// BufferSize returns the largest transfer a single WriteTo or ReadFrom accepts.
func (m *Master) BufferSize() int {
	return m.buf.Cap()
}

// Reset re-arms the hardware and returns to ok whatever the current state.
func (m *Master) Reset() {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.reset()
}

func (m *Master) reset() {
	m.abort()
	m.setState(OK)
}

// abort cuts the transfer on the wire and drops staged or received bytes.
func (m *Master) abort() {
	m.hw.Reset()
	m.hw.Enable()
	m.hw.InterruptDisable()
	m.buf.Reset()
	m.nread = 0
}

func (m *Master) SendStart() error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.state != OK {
		return m.invalidState("start")
	}
	m.hw.Start()
	m.setState(ReadOrWrite)
	return nil
}

func (m *Master) SendRepeatedStart() error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.state != EOW && m.state != EOR {
		return m.invalidState("repeated start")
	}
	m.hw.RepeatedStart()
	m.setState(ReadOrWrite)
	return nil
}

// SendStop closes the current transaction. It does nothing when idle.
func (m *Master) SendStop() {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.state.Group() == twi.GroupIdle {
		return
	}
	m.hw.Stop()
	m.hw.InterruptDisable()
	m.setState(OK)
}

// WriteTo stages data for addr and lets the interrupt handler send it.
// It returns the number of bytes staged.
func (m *Master) WriteTo(addr twi.Address, data []byte) (int, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.state != ReadOrWrite {
		return 0, m.invalidState("write")
	}
	if !addr.Valid() {
		return 0, m.invalidAddress(addr)
	}
	if len(data) > m.buf.Cap() {
		m.setState(ErrorBufferSize)
		return 0, fmt.Errorf("write of %d bytes: %w", len(data), twi.ErrBufferSize)
	}
	m.buf.Reset()
	_, _ = m.buf.Write(data)
	m.addr = addr
	m.setState(SlaW)
	m.hw.InterruptEnable()
	return len(data), nil
}

// Write appends data to the write in progress. When the previous bytes are
// already sent (eow) the transmission resumes within the same transaction.
func (m *Master) Write(data []byte) (int, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	switch m.state {
	case SlaW, Transmitting, EOW:
	default:
		return 0, m.invalidState("write")
	}
	if len(data) > m.buf.Available() {
		return 0, fmt.Errorf("write of %d bytes with %d free: %w", len(data), m.buf.Available(), twi.ErrBufferSize)
	}
	_, _ = m.buf.Write(data)
	if m.state == EOW && len(data) > 0 {
		m.setState(Transmitting)
		m.sendNext()
		m.hw.InterruptEnable()
	}
	return len(data), nil
}

// ReadFrom requests n bytes from addr. The bytes are available through
// ReadBuffer once the state reaches eor_bf.
func (m *Master) ReadFrom(addr twi.Address, n int) (int, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.state != ReadOrWrite || n <= 0 {
		return 0, m.invalidState("read")
	}
	if !addr.Valid() {
		return 0, m.invalidAddress(addr)
	}
	if n > m.buf.Cap() {
		m.setState(ErrorBufferSize)
		return 0, fmt.Errorf("read of %d bytes: %w", n, twi.ErrBufferSize)
	}
	m.buf.Reset()
	m.nread = n
	m.addr = addr
	m.setState(SlaR)
	m.hw.InterruptEnable()
	return n, nil
}

// ReadBuffer drains up to len(dst) received bytes.
func (m *Master) ReadBuffer(dst []byte) (int, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.state != EORBufferFull {
		return 0, m.invalidState("read buffer")
	}
	n := m.buf.Read(dst)
	if m.buf.IsEmpty() {
		m.setState(EOR)
	}
	return n, nil
}

// Probe reports whether a device acknowledges addr. It resets the engine
// first and leaves it released in ok.
func (m *Master) Probe(addr twi.Address) bool {
	if !addr.Valid() {
		return false
	}
	m.Reset()
	found := m.probe(addr)
	m.SendStop()
	if !m.OK() {
		m.Reset()
	}
	return found
}

func (m *Master) probe(addr twi.Address) bool {
	if m.SendStart() != nil {
		return false
	}
	if _, err := m.WriteTo(addr, nil); err != nil {
		return false
	}
	m.WaitWhileBusy(m.probeTimeout)
	return m.State() == EOW
}

// WaitWhileBusy spins in microsecond steps until the engine leaves the busy
// group or the budget runs out. It returns the unused budget; zero means the
// engine may still be busy.
//
// With the default sleep the budget is wall clock time. A sleep installed
// with WithSleep is trusted to let exactly the requested step pass, so the
// budget counts steps.
func (m *Master) WaitWhileBusy(timeout time.Duration) time.Duration {
	if m.realTime {
		deadline := time.Now().Add(timeout)
		for m.IsBusy() && time.Now().Before(deadline) {
			m.sleep(time.Microsecond)
		}
		return max(time.Until(deadline), 0)
	}
	for timeout > 0 && m.IsBusy() {
		m.sleep(time.Microsecond)
		timeout -= time.Microsecond
	}
	return max(timeout, 0)
}

func (m *Master) State() State {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.state
}

func (m *Master) String() string {
	return m.State().String()
}

func (m *Master) IsIdle() bool    { return m.State().Group() == twi.GroupIdle }
func (m *Master) IsBusy() bool    { return m.State().Group() == twi.GroupBusy }
func (m *Master) IsWaiting() bool { return m.State().Group() == twi.GroupWaiting }
func (m *Master) HasError() bool  { return m.State().IsError() }

// Err returns the sentinel error of the current state or nil.
func (m *Master) Err() error {
	return m.State().Err()
}

func (m *Master) OK() bool            { return m.State() == OK }
func (m *Master) NoResponse() bool    { return m.State() == NoResponse }
func (m *Master) EOW() bool           { return m.State() == EOW }
func (m *Master) EOWDataNack() bool   { return m.State() == EOWDataNack }
func (m *Master) EOR() bool           { return m.State() == EOR }
func (m *Master) EORBufferFull() bool { return m.State() == EORBufferFull }
func (m *Master) BusError() bool      { return m.State() == BusError }
func (m *Master) ProgError() bool     { return m.State() == ProgError }

// IsWriting reports an address or data phase of a write in flight.
func (m *Master) IsWriting() bool {
	s := m.State()
	return s == SlaW || s == Transmitting
}

// IsReading reports a read in flight or with data still to drain.
func (m *Master) IsReading() bool {
	s := m.State()
	return s == SlaR || s == Receiving || s == EORBufferFull
}

func (m *Master) setState(s State) {
	if s != m.state {
		m.log.Debug("state change", "from", m.state, "to", s)
	}
	m.state = s
}

// invalidState records a precondition violation. An error already present is
// kept so the first failure can still be diagnosed. An open transfer is cut
// so later bus events cannot move the engine out of the error; from idle the
// hardware is not touched.
func (m *Master) invalidState(op string) error {
	current := m.state
	m.progError()
	m.log.Warn("operation not allowed", "op", op, "state", current)
	return fmt.Errorf("%s in state %s: %w", op, current, twi.ErrInvalidState)
}

func (m *Master) invalidAddress(addr twi.Address) error {
	m.progError()
	return fmt.Errorf("%w: %s", twi.ErrAddress, addr)
}

func (m *Master) progError() {
	if m.state.IsError() {
		return
	}
	if m.state.Group() != twi.GroupIdle {
		m.abort()
	}
	m.setState(ProgError)
}
