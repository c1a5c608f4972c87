package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fwup-go/fwup/internal/action"
	"github.com/fwup-go/fwup/internal/logging"
	"github.com/fwup-go/fwup/internal/progress"
)

// cliDiag is the plain (non-framed) action.Diagnostics implementation: info
// and subprocess output go to the logger, matching every other ambient log
// line the driver emits, rather than a second ad-hoc channel.
type cliDiag struct{}

func (cliDiag) Info(message string) {
	logging.Info(message)
}

func (cliDiag) Output(p []byte) error {
	logging.Info(string(p))
	return nil
}

// newDiagnostics returns the framed or plain diagnostic sink per spec §6's
// "when framing is on, the diagnostic channel emits length-prefixed
// records", writing to out (stdout, so a driving process can read the
// frames off a pipe without interleaving with stderr logging).
func newDiagnostics(framed bool, out io.Writer) (diag action.Diagnostics, progressFn func(*progress.Reporter)) {
	if framed {
		fw := progress.NewFrameWriter(out)
		return fw, func(r *progress.Reporter) {
			if err := fw.Progress(r); err != nil {
				fmt.Fprintf(os.Stderr, "fwup: framed progress write failed: %v\n", err)
			}
		}
	}
	return cliDiag{}, func(r *progress.Reporter) {
		fmt.Fprintf(os.Stderr, "progress: %s (%.1f%%)\n", r.HumanUnits(), r.Percent())
	}
}
