package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/mklimuk/twi/cmd/dev/cmd"
)

func main() {
	var debug bool
	root := &cobra.Command{
		Use:   "dev",
		Short: "build and test tool for the twi project",
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging(debug)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.AddCommand(
		cmd.BuildCmd(),
		cmd.ConfigCmd(),
		cmd.TestCmd(),
		cmd.LintCmd(),
		cmd.IntegrationTestCmd(),
	)
	if err := root.Execute(); err != nil {
		slog.Error("dev command failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	charm := log.NewWithOptions(os.Stdout, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "dev",
	})
	charm.SetColorProfile(termenv.TrueColor)
	charm.SetLevel(log.InfoLevel)
	if debug {
		charm.SetLevel(log.DebugLevel)
		charm.SetReportCaller(true)
	}
	slog.SetDefault(slog.New(charm))
}
