package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fwup-go/fwup"
	"github.com/fwup-go/fwup/internal/logging"
)

func newVerifyCmd() *cobra.Command {
	var (
		task   string
		framed bool
	)

	cmd := &cobra.Command{
		Use:   "verify <archive>",
		Short: "Dry-run a task's resource hashes and progress without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if task == "" {
				return fmt.Errorf("verify: --task is required")
			}
			ra, size, store, err := loadManifestConfig(args[0])
			if err != nil {
				return err
			}
			defer ra.Close()

			diag, reportProgress := newDiagnostics(framed, os.Stdout)
			reporter, err := fwup.Verify(ra, size, store, task, diag)
			if reporter != nil {
				reportProgress(reporter)
			}
			if err != nil {
				return err
			}
			logging.Info("verify passed", "task", task)
			return nil
		},
	}
	cmd.Flags().StringVarP(&task, "task", "t", "", "task name to verify (required)")
	cmd.Flags().BoolVar(&framed, "framed", false, "emit length-prefixed diagnostic records on stdout")
	return cmd
}
