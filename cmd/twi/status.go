package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/config"
	"github.com/mklimuk/twi/master"
)

type engineStatus struct {
	State      master.State     `yaml:"state"`
	Group      string           `yaml:"group"`
	BufferSize int              `yaml:"buffer_size"`
	Clock      config.Frequency `yaml:"clock"`
	Divider    uint8            `yaml:"divider"`
	Prescaler  int64            `yaml:"prescaler"`
}

type busStatus struct {
	Backend string        `yaml:"backend"`
	Bus     string        `yaml:"bus"`
	Version string        `yaml:"version"`
	Engine  *engineStatus `yaml:"engine,omitempty"`
	Peers   []twi.Address `yaml:"peers,omitempty"`
}

var statusCmd = cli.Command{
	Name:  "status",
	Usage: "print the bus and engine state",
	Action: func(c *cli.Context) error {
		return withBus(c, func(b *backend) error {
			status := busStatus{
				Backend: b.cfg.Backend,
				Bus:     b.bus.String(),
				Version: config.Version,
			}
			if b.engine != nil {
				f, rate := b.wire.Master().Clock()
				status.Engine = &engineStatus{
					State:      b.engine.State(),
					Group:      b.engine.State().Group().String(),
					BufferSize: b.engine.BufferSize(),
					Clock:      config.Frequency(f),
					Divider:    rate.Divider,
					Prescaler:  rate.Prescaler,
				}
				status.Peers = b.wire.Addresses()
			}
			return printYAML(status)
		})
	},
}
