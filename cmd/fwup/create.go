package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fwup-go/fwup"
	"github.com/fwup-go/fwup/internal/config"
	"github.com/fwup-go/fwup/internal/logging"
)

func newCreateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "create <config-file>",
		Short: "Assemble a firmware archive from a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("create: --output is required")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("create: read config: %w", err)
			}
			store, err := config.Parse(data)
			if err != nil {
				return fmt.Errorf("create: %w", err)
			}

			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create: open output: %w", err)
			}
			defer out.Close()

			if err := fwup.Create(store, out); err != nil {
				return err
			}
			logging.Info("archive created", "output", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "path to write the archive to")
	return cmd
}
