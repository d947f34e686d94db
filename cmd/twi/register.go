package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/cmd/twi/console"
	"github.com/mklimuk/twi/i2c"
)

var registerGetCmd = &cli.Command{
	Name:      "get",
	Usage:     "read register values",
	ArgsUsage: "ADDRESS REGISTER",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "count", Value: 1, Usage: "number of consecutive registers"},
	},
	Action: func(c *cli.Context) error {
		addr, reg, err := registerArgs(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		count := c.Int("count")
		if count < 1 {
			return console.Exit(1, "invalid register count: %d", count)
		}
		return withBus(c, func(b *backend) error {
			board, err := startBoard(b, addr)
			if err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
			defer func() { _ = board.Halt() }()
			err = board.Write([]byte{reg})
			if err != nil {
				return console.Exit(1, "device %s register select error: %v", addr, console.Red(err))
			}
			data := make([]byte, count)
			err = board.Read(data)
			if err != nil {
				return console.Exit(1, "device %s read error: %v", addr, console.Red(err))
			}
			for i, v := range data {
				fmt.Printf("register %s value: %s\n", console.White(fmt.Sprintf("%#02x", int(reg)+i)), console.White(fmt.Sprintf("%#02x", v)))
			}
			return nil
		})
	},
}

var registerSetCmd = &cli.Command{
	Name:      "set",
	Usage:     "write a register value",
	ArgsUsage: "ADDRESS REGISTER VALUE",
	Action: func(c *cli.Context) error {
		addr, reg, err := registerArgs(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		val, err := parseByte(c.Args().Get(2))
		if err != nil {
			return console.Exit(1, "invalid value: %q", c.Args().Get(2))
		}
		return withBus(c, func(b *backend) error {
			board, err := startBoard(b, addr)
			if err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
			defer func() { _ = board.Halt() }()
			err = board.WriteByteData(reg, val)
			if err != nil {
				return console.Exit(1, "device %s write error: %v", addr, console.Red(err))
			}
			fmt.Printf("register %s (device %s) set to %s\n", console.White(fmt.Sprintf("%#02x", reg)), console.White(addr), console.White(fmt.Sprintf("%#02x", val)))
			return nil
		})
	},
}

var registerCmd = cli.Command{
	Name:    "register",
	Aliases: []string{"reg"},
	Usage:   "access register mapped devices",
	Subcommands: []*cli.Command{
		registerGetCmd,
		registerSetCmd,
	},
}

func registerArgs(c *cli.Context) (twi.Address, byte, error) {
	addr, err := twi.ParseAddress(c.Args().Get(0))
	if err != nil {
		return 0, 0, err
	}
	reg, err := strconv.ParseUint(c.Args().Get(1), 0, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid register %q: %w", c.Args().Get(1), err)
	}
	return addr, byte(reg), nil
}

func startBoard(b *backend, addr twi.Address) (*gobot.GenericDriver, error) {
	board := gobot.NewGenericDriver(i2c.NewConnector(b.bus), "register", int(addr))
	err := board.Start()
	if err != nil {
		return nil, fmt.Errorf("device %s start error: %w", addr, err)
	}
	return board, nil
}
