package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/cmd/twi/console"
	"github.com/mklimuk/twi/scan"
)

var scanCmd = cli.Command{
	Name:  "scan",
	Usage: "list devices acknowledging their address",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "from", Value: "0x08", Usage: "first address"},
		&cli.StringFlag{Name: "to", Value: "0x77", Usage: "last address"},
		&cli.IntFlag{Name: "attempts", Value: 1, Usage: "probes per address"},
		&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "prompt for the address range"},
	},
	Action: func(c *cli.Context) error {
		from, to := c.String("from"), c.String("to")
		if c.Bool("interactive") {
			var err error
			from, err = console.Ask("first address", from)
			if err != nil {
				return err
			}
			to, err = console.Ask("last address", to)
			if err != nil {
				return err
			}
		}
		first, err := twi.ParseAddress(from)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		last, err := twi.ParseAddress(to)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		return withBus(c, func(b *backend) error {
			s := scan.New(b.bus,
				scan.WithAttempts(c.Int("attempts")),
				scan.WithLogger(slog.Default()),
				scan.WithReport(func(addr twi.Address, found bool) {
					if found {
						slog.Debug("device answered", "address", addr)
					}
				}))
			found, err := s.Scan(c.Context, first, last)
			if err != nil {
				return console.Exit(1, "scan failed: %s", console.Red(err))
			}
			console.Grid(found)
			if len(found) == 0 {
				console.PInfof(console.PictoGhost, "no devices on %s", console.White(b.bus))
				return nil
			}
			console.PInfof(console.PictoFinish, "%s device(s) on %s", console.White(len(found)), console.White(b.bus))
			return nil
		})
	},
}

var probeCmd = cli.Command{
	Name:      "probe",
	Usage:     "check whether a device answers an address",
	ArgsUsage: "ADDRESS",
	Action: func(c *cli.Context) error {
		addr, err := twi.ParseAddress(c.Args().First())
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		return withBus(c, func(b *backend) error {
			found, err := b.bus.Probe(c.Context, addr)
			if err != nil {
				return console.Exit(1, "probe failed: %s", console.Red(err))
			}
			if !found {
				return console.Exit(2, "%s no device at %s", console.PictoStop, console.White(addr))
			}
			console.PInfof(console.PictoPin, "device at %s", console.Green(addr))
			return nil
		})
	},
}

var readCmd = cli.Command{
	Name:      "read",
	Usage:     "read bytes from a device, optionally starting at a register",
	ArgsUsage: "ADDRESS COUNT",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "reg", Usage: "register written before reading"},
	},
	Action: func(c *cli.Context) error {
		addr, err := twi.ParseAddress(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		n, err := strconv.Atoi(c.Args().Get(1))
		if err != nil || n < 1 {
			return console.Exit(1, "invalid byte count: %q", c.Args().Get(1))
		}
		w, err := registerPrefix(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		return withBus(c, func(b *backend) error {
			r := make([]byte, n)
			err := b.bus.Tx(uint16(addr), w, r)
			if err != nil {
				return console.Exit(1, "read from %s failed: %s", addr, console.Red(err))
			}
			console.Dump(0, r)
			return nil
		})
	},
}

var writeCmd = cli.Command{
	Name:      "write",
	Usage:     "write hex encoded bytes to a device",
	ArgsUsage: "ADDRESS HEX",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "reg", Usage: "register written before the data"},
	},
	Action: func(c *cli.Context) error {
		addr, err := twi.ParseAddress(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		data, err := parseHex(c.Args().Get(1))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		w, err := registerPrefix(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		return withBus(c, func(b *backend) error {
			err := b.bus.Tx(uint16(addr), append(w, data...), nil)
			if err != nil {
				return console.Exit(1, "write to %s failed: %s", addr, console.Red(err))
			}
			console.Infof("%s byte(s) written to %s", console.White(len(data)), console.White(addr))
			return nil
		})
	},
}

func registerPrefix(c *cli.Context) ([]byte, error) {
	if !c.IsSet("reg") {
		return nil, nil
	}
	reg, err := parseByte(c.String("reg"))
	if err != nil {
		return nil, fmt.Errorf("invalid register: %w", err)
	}
	return []byte{reg}, nil
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

// parseHex accepts "0a0b", "0x0a0b" and "0a 0b".
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return nil, fmt.Errorf("no data")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return b, nil
}
