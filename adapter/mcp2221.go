// Package adapter drives USB to I2C bridges.
package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"
	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/scan"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

// MaxTransfer is the largest payload a single HID report carries.
const MaxTransfer = 60

const reportSize = 64

const (
	cmdStatus        = 0x10
	cmdWrite         = 0x90
	cmdWriteNoStop   = 0x94
	cmdRead          = 0x91
	cmdReadRepeated  = 0x93
	cmdGetData       = 0x40
	statusCancel     = 0x10
	statusSetSpeed   = 0x20
	speedRejected    = 0x21
	getDataFailed    = 0x41
	engineBusy       = 0x01
	clockBase        = 12 * physic.MegaHertz
	maxDividerOffset = 3
)

var ErrCommandFailed = errors.New("command failed")

var (
	_ twi.I2CBus  = &MCP2221{}
	_ i2c.Bus     = &MCP2221{}
	_ scan.Prober = &MCP2221{}
)

// Port is an open HID report pipe.
type Port interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

type Opts struct {
	Logger       *slog.Logger
	ResponseWait time.Duration
	Device       int
	Open         func(id int) (Port, error)
}

type Opt func(*Opts)

func WithLogger(log *slog.Logger) Opt {
	return func(o *Opts) {
		o.Logger = log
	}
}

func WithResponseWait(d time.Duration) Opt {
	return func(o *Opts) {
		o.ResponseWait = d
	}
}

// WithDevice selects one of several attached adapters by enumeration index.
func WithDevice(id int) Opt {
	return func(o *Opts) {
		o.Device = id
	}
}

// WithPort replaces USB enumeration, mostly for tests.
func WithPort(open func(id int) (Port, error)) Opt {
	return func(o *Opts) {
		o.Open = open
	}
}

type MCP2221 struct {
	mx       sync.Mutex
	request  []byte
	response []byte
	config   Opts
	log      *slog.Logger
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"buffer_counter"`
	I2CSpeedDivider        int    `yaml:"speed_divider"`
	I2CTimeout             int    `yaml:"timeout"`
	CurrentAddress         string `yaml:"address"`
	LastWriteRequestedSize uint16 `yaml:"requested_size"`
	LastWriteSentSize      uint16 `yaml:"sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

func NewMCP2221(opts ...Opt) *MCP2221 {
	config := Opts{
		Logger:       slog.Default(),
		ResponseWait: 50 * time.Millisecond,
		Device:       -1,
		Open:         openHID,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &MCP2221{
		request:  make([]byte, reportSize),
		response: make([]byte, reportSize),
		config:   config,
		log:      config.Logger.With("adapter", "mcp2221"),
	}
}

func (d *MCP2221) String() string {
	return "mcp2221"
}

// Tx writes w and reads r in one transfer; the read follows a repeated start.
func (d *MCP2221) Tx(addr uint16, w, r []byte) error {
	if addr > uint16(twi.MaxAddress) {
		return fmt.Errorf("%w: %#x", twi.ErrAddress, addr)
	}
	if len(w) > MaxTransfer || len(r) > MaxTransfer {
		return twi.ErrBufferSize
	}
	ctx := context.Background()
	d.mx.Lock()
	defer d.mx.Unlock()
	if len(r) == 0 {
		return d.write(ctx, cmdWrite, byte(addr), w)
	}
	cmd := byte(cmdRead)
	if len(w) > 0 {
		err := d.write(ctx, cmdWriteNoStop, byte(addr), w)
		if err != nil {
			return err
		}
		cmd = cmdReadRepeated
	}
	return d.read(ctx, cmd, byte(addr), r)
}

// SetSpeed programs the divider of the 12MHz engine clock.
func (d *MCP2221) SetSpeed(f physic.Frequency) error {
	if f <= 0 {
		return twi.ErrClockRate
	}
	div := int64(clockBase/f) - maxDividerOffset
	if div < 1 || div > 0xFF {
		return fmt.Errorf("%w: %s", twi.ErrClockRate, f)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[3] = statusSetSpeed
	d.request[4] = byte(div)
	err := d.send(context.Background())
	if err != nil {
		return fmt.Errorf("set speed failed: %w", err)
	}
	if d.response[3] == speedRejected {
		return twi.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > MaxTransfer {
		return twi.ErrBufferSize
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.write(ctx, cmdWrite, address, buffer)
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > MaxTransfer {
		return twi.ErrBufferSize
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.read(ctx, cmdRead, address, buffer)
}

// Probe reads a single byte; the adapter cannot send an address only frame.
func (d *MCP2221) Probe(ctx context.Context, addr twi.Address) (bool, error) {
	if !addr.Valid() {
		return false, fmt.Errorf("%w: %#x", twi.ErrAddress, byte(addr))
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	err := d.read(ctx, cmdRead, byte(addr), make([]byte, 1))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrCommandFailed) || errors.Is(err, twi.ErrBusBusy) {
		d.log.Debug("no answer", "address", addr, "error", err)
		// a nacked address leaves the engine waiting
		_, rerr := d.releaseBus(ctx)
		return false, rerr
	}
	return false, err
}

// Close does nothing: the HID device is opened for each report exchange.
func (d *MCP2221) Close() error {
	return nil
}

func (d *MCP2221) write(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	if d.response[1] == engineBusy {
		d.log.Debug("adapter busy")
		return twi.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) read(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if d.response[1] == engineBusy {
		return twi.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdGetData
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == getDataFailed {
		return fmt.Errorf("%w: reading slave data from the i2c engine", ErrCommandFailed)
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("%w: invalid data size byte; expected %d, got %d", ErrCommandFailed, len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

func (d *MCP2221) Release(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.releaseBus(ctx)
	return err
}

// ReleaseBus cancels the current transfer and frees the bus.
func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx)
}

func (d *MCP2221) releaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = statusCancel
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) send(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dev, err := d.config.Open(d.config.Device)
	if err != nil {
		return err
	}
	defer func() {
		err := dev.Close()
		if err != nil {
			d.log.Warn("could not close device", "error", err)
		}
	}()
	d.log.Debug("sending message to adapter", "report", hex.Dump(d.request))
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	if d.config.ResponseWait > 0 {
		time.Sleep(d.config.ResponseWait)
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	d.log.Debug("read message from adapter", "report", hex.Dump(d.response))
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}

func openHID(id int) (Port, error) {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return nil, fmt.Errorf("MCP2221 device not found")
	}
	if id < 0 {
		if len(devs) > 1 {
			return nil, fmt.Errorf("ambiguous device identification")
		}
		id = 0
	}
	if id >= len(devs) {
		return nil, fmt.Errorf("no device with id %d", id)
	}
	dev, err := devs[id].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return dev, nil
}
