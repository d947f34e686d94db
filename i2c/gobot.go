package i2c

import (
	"encoding/binary"
	"fmt"

	gobot "gobot.io/x/gobot/v2/drivers/i2c"
	"periph.io/x/conn/v3/i2c"
)

var (
	_ gobot.Connector  = &Connector{}
	_ gobot.Connection = &Connection{}
)

// Connector hands gobot drivers connections on periph buses. Bus numbers
// index the buses given to NewConnector.
type Connector struct {
	buses []i2c.Bus
}

func NewConnector(buses ...i2c.Bus) *Connector {
	return &Connector{buses: buses}
}

func (c *Connector) GetI2cConnection(address int, busNr int) (gobot.Connection, error) {
	if busNr < 0 || busNr >= len(c.buses) {
		return nil, fmt.Errorf("no i2c bus %d", busNr)
	}
	if address < 0 || address > 0x7F {
		return nil, fmt.Errorf("invalid i2c address %#x", address)
	}
	return &Connection{dev: &i2c.Dev{Bus: c.buses[busNr], Addr: uint16(address)}}, nil
}

func (c *Connector) DefaultI2cBus() int {
	return 0
}

// Connection is one device on a bus. Word data is little endian as in SMBus.
type Connection struct {
	dev *i2c.Dev
}

func (c *Connection) Read(b []byte) (int, error) {
	err := c.dev.Tx(nil, b)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *Connection) Write(b []byte) (int, error) {
	return c.dev.Write(b)
}

func (c *Connection) Close() error {
	return nil
}

func (c *Connection) ReadByte() (byte, error) {
	b := make([]byte, 1)
	err := c.dev.Tx(nil, b)
	return b[0], err
}

func (c *Connection) ReadByteData(reg uint8) (uint8, error) {
	b := make([]byte, 1)
	err := c.dev.Tx([]byte{reg}, b)
	return b[0], err
}

func (c *Connection) ReadWordData(reg uint8) (uint16, error) {
	b := make([]byte, 2)
	err := c.dev.Tx([]byte{reg}, b)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Connection) ReadBlockData(reg uint8, b []byte) error {
	return c.dev.Tx([]byte{reg}, b)
}

func (c *Connection) WriteByte(val byte) error {
	return c.dev.Tx([]byte{val}, nil)
}

func (c *Connection) WriteByteData(reg uint8, val uint8) error {
	return c.dev.Tx([]byte{reg, val}, nil)
}

func (c *Connection) WriteWordData(reg uint8, val uint16) error {
	return c.dev.Tx(binary.LittleEndian.AppendUint16([]byte{reg}, val), nil)
}

func (c *Connection) WriteBlockData(reg uint8, b []byte) error {
	return c.dev.Tx(append([]byte{reg}, b...), nil)
}

func (c *Connection) WriteBytes(b []byte) error {
	return c.dev.Tx(b, nil)
}
