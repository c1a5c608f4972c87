// Command fwup is the CLI front end spec §6 names as an external
// collaborator: mode selection (create/apply/verify/list/metadata),
// archive/output/task flags, the --unsafe and --framed switches, and the
// process exit codes §6 specifies (0 success, 1 any reported error, 2 a
// task's preconditions all failed).
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fwup-go/fwup"
	"github.com/fwup-go/fwup/internal/config"
	"github.com/fwup-go/fwup/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fwup: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to spec §6's exit code table.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, fwup.ErrPreconditionsFailed) {
		return 2
	}
	return 1
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "fwup",
		Short:         "Assemble and apply firmware update archives",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := logging.DefaultConfig()
			if verbose {
				cfg.Level = logging.LevelDebug
			}
			logging.SetDefault(logging.NewLogger(cfg))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newCreateCmd(),
		newApplyCmd(),
		newVerifyCmd(),
		newListCmd(),
		newMetadataCmd(),
	)
	return root
}

// openArchive opens path for random access and reports its size, the shape
// archive.NewReader needs since the zip format's central directory sits at
// the end of the file.
func openArchive(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open archive: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat archive: %w", err)
	}
	return f, fi.Size(), nil
}

// loadManifestConfig extracts an archive's manifest entry and parses it
// into a config.Store, the step both apply and verify need before a task
// can be run (spec §6: "the manifest entry... is the stringified
// configuration").
func loadManifestConfig(archivePath string) (ra *os.File, size int64, store *config.Store, err error) {
	ra, size, err = openArchive(archivePath)
	if err != nil {
		return nil, 0, nil, err
	}
	manifest, err := fwup.Metadata(ra, size)
	if err != nil {
		ra.Close()
		return nil, 0, nil, err
	}
	store, err = config.Parse([]byte(manifest))
	if err != nil {
		ra.Close()
		return nil, 0, nil, err
	}
	return ra, size, store, nil
}
