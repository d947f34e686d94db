package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mklimuk/twi/config"
)

func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write a default twi.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("output")
			if err != nil {
				return fmt.Errorf("could not get output flag: %w", err)
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return fmt.Errorf("could not get force flag: %w", err)
			}
			_, err = os.Stat(path)
			if err == nil && !force {
				return fmt.Errorf("%s exists, use --force to overwrite", path)
			}
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("could not stat %s: %w", path, err)
			}
			err = os.WriteFile(path, []byte(config.Default().String()), 0o644)
			if err != nil {
				return fmt.Errorf("could not write config: %w", err)
			}
			slog.Info("default configuration written", "path", path)
			return nil
		},
	}
	cmd.Flags().String("output", "twi.yaml", "config file to write")
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}
