package cmd

import (
	"fmt"
	"log/slog"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

// TestCmd runs the unit tests, all of which use the simulated bus.
func TestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run unit tests against the simulated bus",
		RunE: func(cmd *cobra.Command, args []string) error {
			lint, err := cmd.Flags().GetBool("lint")
			if err != nil {
				return fmt.Errorf("could not get lint flag: %w", err)
			}
			if lint {
				slog.Info("linting")
				err = test.Lint()
				if err != nil {
					return fmt.Errorf("failed to run linting: %w", err)
				}
			}
			err = test.Test()
			if err != nil {
				return fmt.Errorf("failed to run tests: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Bool("lint", false, "run the linters first")
	return cmd
}

func LintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Run linting",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Lint()
			if err != nil {
				return fmt.Errorf("failed to run linting: %w", err)
			}
			return nil
		},
	}
}

// IntegrationTestCmd runs the tests that need a host bus or an MCP2221.
func IntegrationTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "integration-test",
		Short: "Run tests on attached hardware",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Integ()
			if err != nil {
				return fmt.Errorf("failed to run integration testing: %w", err)
			}
			return nil
		},
	}
}
