package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fwup-go/fwup"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <archive>",
		Short: "List an archive's entries in stored order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ra, size, err := openArchive(args[0])
			if err != nil {
				return err
			}
			defer ra.Close()

			names, err := fwup.List(ra, size)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
