package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/twi/cmd/twi/console"
	"github.com/mklimuk/twi/config"
)

const configKey = "config"

func main() {
	os.Exit(run())
}

func run() int {
	app := cli.NewApp()
	app.Name = "twi"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", config.Version, config.Date, config.Commit)
	app.Usage = "two wire interface engine cli"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "configuration file",
			Value:   "twi.yaml",
			EnvVars: []string{"TWI_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "bus backend: sim, host or mcp2221",
		},
		&cli.StringFlag{
			Name:  "device",
			Usage: "host bus name, e.g. /dev/i2c-1",
		},
		&cli.StringFlag{
			Name:  "clock",
			Usage: "bus clock, e.g. 400kHz",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		ctx.App.Metadata[configKey] = cfg

		charm := chlog.NewWithOptions(os.Stdout, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		level, err := chlog.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = chlog.InfoLevel
		}
		charm.SetLevel(level)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	app.Commands = cli.Commands{
		&scanCmd,
		&probeCmd,
		&readCmd,
		&writeCmd,
		&registerCmd,
		&clockCmd,
		&eepromCmd,
		&slaveCmd,
		&statusCmd,
		&mcp2221Cmd,
		&usbCmd,
	}
	err := app.Run(os.Args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			log.Printf("unexpected error: %v", err)
			return exerr.ExitCode()
		}
		return 1
	}
	return 0
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return cfg, err
	}
	if ctx.IsSet("backend") {
		cfg.Backend = ctx.String("backend")
	}
	if ctx.IsSet("device") {
		cfg.Device = ctx.String("device")
	}
	if ctx.IsSet("clock") {
		err = cfg.Clock.UnmarshalText([]byte(ctx.String("clock")))
		if err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

func appConfig(ctx *cli.Context) config.Config {
	cfg, ok := ctx.App.Metadata[configKey].(config.Config)
	if !ok {
		return config.Default()
	}
	return cfg
}
