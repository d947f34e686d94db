package main

import (
	"time"

	"github.com/urfave/cli/v2"
	"tinygo.org/x/drivers/ds1307"

	"github.com/mklimuk/twi/cmd/twi/console"
)

var clockGetCmd = &cli.Command{
	Name:  "get",
	Usage: "read the real time clock",
	Action: func(c *cli.Context) error {
		return withBus(c, func(b *backend) error {
			rtc := ds1307.New(b.bus)
			t, err := rtc.ReadTime()
			if err != nil {
				return console.Exit(1, "clock read error: %s", console.Red(err))
			}
			running := console.Green("running")
			if !rtc.IsOscillatorRunning() {
				running = console.Yellow("halted")
			}
			console.PInfof(console.PictoCalendar, "%s (%s)", console.White(t.Format(time.RFC3339)), running)
			return nil
		})
	},
}

var clockSetCmd = &cli.Command{
	Name:      "set",
	Usage:     "set the real time clock, to now when no time is given",
	ArgsUsage: "[RFC3339 TIME]",
	Action: func(c *cli.Context) error {
		t := time.Now().UTC()
		if c.NArg() > 0 {
			var err error
			t, err = time.Parse(time.RFC3339, c.Args().First())
			if err != nil {
				return console.Exit(1, "invalid time: %s", console.Red(err))
			}
		}
		return withBus(c, func(b *backend) error {
			rtc := ds1307.New(b.bus)
			err := rtc.SetTime(t)
			if err != nil {
				return console.Exit(1, "clock write error: %s", console.Red(err))
			}
			err = rtc.SetOscillatorRunning(true)
			if err != nil {
				return console.Exit(1, "could not start oscillator: %s", console.Red(err))
			}
			console.PInfof(console.PictoCalendar, "clock set to %s", console.White(t.Format(time.RFC3339)))
			return nil
		})
	},
}

var clockCmd = cli.Command{
	Name:  "clock",
	Usage: "DS1307 real time clock",
	Subcommands: []*cli.Command{
		clockGetCmd,
		clockSetCmd,
	},
}
