package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fwup-go/fwup"
	"github.com/fwup-go/fwup/internal/blocksink"
	"github.com/fwup-go/fwup/internal/logging"
)

func newApplyCmd() *cobra.Command {
	var (
		task     string
		unsafe   bool
		framed   bool
		isDevice bool
	)

	cmd := &cobra.Command{
		Use:   "apply <archive> <output>",
		Short: "Apply a task from a firmware archive to a device or file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if task == "" {
				return fmt.Errorf("apply: --task is required")
			}
			archivePath, outputPath := args[0], args[1]

			ra, size, store, err := loadManifestConfig(archivePath)
			if err != nil {
				return err
			}
			defer ra.Close()

			sink, err := blocksink.OpenFile(outputPath, isDevice)
			if err != nil {
				return fmt.Errorf("apply: open output: %w", err)
			}
			defer sink.Close()

			diag, reportProgress := newDiagnostics(framed, os.Stdout)
			reporter, err := fwup.Apply(ra, size, sink, store, task, diag, unsafe)
			if reporter != nil {
				reportProgress(reporter)
			}
			if err != nil {
				return err
			}
			logging.Info("apply complete", "task", task, "output", outputPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&task, "task", "t", "", "task name to run (required)")
	cmd.Flags().BoolVar(&unsafe, "unsafe", false, "allow path_write/pipe_write/execute actions")
	cmd.Flags().BoolVar(&framed, "framed", false, "emit length-prefixed diagnostic records on stdout")
	cmd.Flags().BoolVarP(&isDevice, "device", "d", false, "treat output as a block device node (enables trim/discard)")
	return cmd
}
