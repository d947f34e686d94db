package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/twi/cmd/twi/console"
	"github.com/mklimuk/twi/config"
	"github.com/mklimuk/twi/slave"
	"github.com/mklimuk/twi/stream"
)

const pumpTick = 50 * time.Microsecond

var slaveEchoCmd = &cli.Command{
	Name:      "echo",
	Usage:     "send a message to the slave engine and read it back reversed",
	ArgsUsage: "MESSAGE",
	Flags: []cli.Flag{
		&cli.DurationFlag{Name: "timeout", Value: 200 * time.Millisecond, Usage: "per transfer timeout"},
	},
	Action: func(c *cli.Context) error {
		msg := []byte(c.Args().First())
		if len(msg) == 0 {
			return console.Exit(1, "empty message")
		}
		return withBus(c, func(b *backend) error {
			if b.wire == nil {
				return console.Exit(1, "slave echo needs the %s backend", config.BackendSim)
			}
			if limit := min(b.cfg.Slave.BufferSize, b.engine.BufferSize()); len(msg) > limit {
				return console.Exit(1, "message longer than %d bytes", limit)
			}
			reply, err := echo(c.Context, b, msg, c.Duration("timeout"))
			if err != nil {
				return console.Exit(1, "echo failed: %s", console.Red(err))
			}
			console.Infof("sent %s, got %s", console.White(string(msg)), console.Green(string(reply)))
			return nil
		})
	},
}

var slaveCmd = cli.Command{
	Name:  "slave",
	Usage: "exercise the slave engine on the simulated bus",
	Subcommands: []*cli.Command{
		slaveEchoCmd,
	},
}

func echo(parent context.Context, b *backend, msg []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	port := b.wire.NewSlave()
	s := slave.New(port,
		slave.WithBufferSize(b.cfg.Slave.BufferSize),
		slave.WithLogger(slog.Default()))
	port.OnInterrupt(s.HandleBusEvent)
	err := s.TurnOn(b.cfg.Slave.Address)
	if err != nil {
		return nil, err
	}
	go func() {
		_ = b.wire.Run(ctx, pumpTick)
	}()
	served := make(chan error, 1)
	go func() {
		served <- s.Serve(ctx, func(req []byte) []byte {
			if req == nil {
				return nil
			}
			out := make([]byte, len(req))
			for i, v := range req {
				out[len(req)-1-i] = v
			}
			return out
		})
	}()

	st, err := stream.Open(ctx, b.engine, b.cfg.Slave.Address, stream.WithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	err = st.Write(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	// the slave answers only after STOP
	err = st.Close()
	if err != nil {
		return nil, err
	}
	reply := make([]byte, len(msg))
	err = readReply(ctx, b, reply, timeout)
	if err != nil {
		return nil, fmt.Errorf("reply: %w", err)
	}
	cancel()
	if err := <-served; err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}
	return reply, nil
}

// readReply retries while the slave is still working on the request.
func readReply(ctx context.Context, b *backend, reply []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		st, err := stream.Open(ctx, b.engine, b.cfg.Slave.Address, stream.WithTimeout(timeout))
		if err != nil {
			return err
		}
		err = st.Read(ctx, reply)
		_ = st.Close()
		if err == nil || time.Now().After(deadline) {
			return err
		}
		slog.Debug("slave not ready", "error", err)
		time.Sleep(pumpTick)
	}
}
