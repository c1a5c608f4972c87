package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fwup-go/fwup"
)

func newMetadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <archive>",
		Short: "Print an archive's manifest configuration verbatim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ra, size, err := openArchive(args[0])
			if err != nil {
				return err
			}
			defer ra.Close()

			manifest, err := fwup.Metadata(ra, size)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), manifest)
			return nil
		},
	}
}
