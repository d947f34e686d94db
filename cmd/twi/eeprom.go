package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"tinygo.org/x/drivers/at24cx"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/cmd/twi/console"
	"github.com/mklimuk/twi/memory"
)

var eepromParts = map[string]memory.EEPROMConfig{
	"24c02":  memory.Conf24C02,
	"24c16":  memory.Conf24C16,
	"24c32":  memory.Conf24C32,
	"24c256": memory.Conf24C256,
}

var eepromFlags = []cli.Flag{
	&cli.StringFlag{Name: "addr", Value: "0x50", Usage: "device address"},
	&cli.StringFlag{Name: "part", Value: "24c32", Usage: "24c02, 24c16, 24c32 or 24c256"},
}

// eeprom is the part of the memory driver the commands use.
type eeprom interface {
	ReadAt(ctx context.Context, off int, p []byte) error
	WriteAt(ctx context.Context, off int, p []byte) error
}

// at24 runs the tinygo driver on buses without an engine.
type at24 struct {
	dev  at24cx.Device
	size int
}

func (a *at24) ReadAt(_ context.Context, off int, p []byte) error {
	if off < 0 || off+len(p) > a.size {
		return memory.ErrOutOfRange
	}
	_, err := a.dev.ReadAt(p, int64(off))
	return err
}

func (a *at24) WriteAt(_ context.Context, off int, p []byte) error {
	if off < 0 || off+len(p) > a.size {
		return memory.ErrOutOfRange
	}
	_, err := a.dev.WriteAt(p, int64(off))
	return err
}

func openEEPROM(c *cli.Context, b *backend) (eeprom, error) {
	addr, err := twi.ParseAddress(c.String("addr"))
	if err != nil {
		return nil, err
	}
	part, ok := eepromParts[strings.ToLower(c.String("part"))]
	if !ok {
		return nil, fmt.Errorf("unknown part %q", c.String("part"))
	}
	if b.engine != nil {
		return memory.NewEEPROM(b.engine, addr, part, b.streamOpts()...), nil
	}
	if part.AddressWidth != 2 {
		return nil, fmt.Errorf("part %s needs the engine backend", c.String("part"))
	}
	dev := at24cx.New(b.bus)
	dev.Address = uint16(addr)
	dev.Configure(at24cx.Config{
		PageSize:      uint16(part.PageSize),
		EndRAMAddress: uint16(part.Size),
	})
	return &at24{dev: dev, size: part.Size}, nil
}

var eepromReadCmd = &cli.Command{
	Name:      "read",
	Usage:     "dump memory contents",
	ArgsUsage: "OFFSET COUNT",
	Flags:     eepromFlags,
	Action: func(c *cli.Context) error {
		off, err := strconv.ParseInt(c.Args().Get(0), 0, 32)
		if err != nil {
			return console.Exit(1, "invalid offset: %q", c.Args().Get(0))
		}
		n, err := strconv.Atoi(c.Args().Get(1))
		if err != nil || n < 1 {
			return console.Exit(1, "invalid byte count: %q", c.Args().Get(1))
		}
		return withBus(c, func(b *backend) error {
			mem, err := openEEPROM(c, b)
			if err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
			data := make([]byte, n)
			err = mem.ReadAt(c.Context, int(off), data)
			if err != nil {
				return console.Exit(1, "memory read error: %s", console.Red(err))
			}
			console.Dump(int(off), data)
			return nil
		})
	},
}

var eepromWriteCmd = &cli.Command{
	Name:      "write",
	Usage:     "write hex encoded bytes",
	ArgsUsage: "OFFSET HEX",
	Flags:     eepromFlags,
	Action: func(c *cli.Context) error {
		off, err := strconv.ParseInt(c.Args().Get(0), 0, 32)
		if err != nil {
			return console.Exit(1, "invalid offset: %q", c.Args().Get(0))
		}
		data, err := parseHex(c.Args().Get(1))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		return withBus(c, func(b *backend) error {
			mem, err := openEEPROM(c, b)
			if err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
			err = mem.WriteAt(c.Context, int(off), data)
			if err != nil {
				return console.Exit(1, "memory write error: %s", console.Red(err))
			}
			console.PInfof(console.PictoMemory, "%s byte(s) written at %s", console.White(len(data)), console.White(fmt.Sprintf("%#04x", off)))
			return nil
		})
	},
}

var eepromCmd = cli.Command{
	Name:  "eeprom",
	Usage: "24 series serial EEPROM",
	Subcommands: []*cli.Command{
		eepromReadCmd,
		eepromWriteCmd,
	},
}
