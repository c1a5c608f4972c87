// Package action is the action registry and argv-stream interpreter (spec
// §4.1, §4.2): a fixed table of named actions, each a
// {validate, compute_progress, run} triple, dispatched against a shared
// apply-time context over the block cache, FAT volumes, U-Boot
// environments, and the active resource stream.
package action

import (
	"github.com/fwup-go/fwup/internal/block"
	"github.com/fwup-go/fwup/internal/config"
	"github.com/fwup-go/fwup/internal/constants"
	"github.com/fwup-go/fwup/internal/fat"
	"github.com/fwup-go/fwup/internal/fwerr"
	"github.com/fwup-go/fwup/internal/sparse"
)

// Diagnostics is the sink info/execute/pipe_write output is written to (spec
// §6's "diagnostic channel").
type Diagnostics interface {
	Info(message string)
	Output(p []byte) error
}

// Progress accumulates progress units as compute_progress and run phases
// report them.
type Progress interface {
	Add(units uint64)
}

// Resource is the active on-resource binding: the archive's resource
// stream for the currently dispatched data entry, plus everything a
// FILE-only action needs to verify it. Exactly one FILE-only action in an
// on-resource funlist may consume Stream; Consumed enforces that.
type Resource struct {
	Name         string
	ExpectedHash string
	DataSize     int64
	TotalSize    int64
	Stream       *sparse.ResourceStream
	Consumed     bool
}

// Context is threaded through every action invocation.
type Context struct {
	Cache      *block.Cache
	Config     *config.Store
	Diag       Diagnostics
	Progress   Progress
	UnsafeMode bool
	Resource   *Resource

	// fatVolumes caches open FAT volume handles by block offset for the
	// lifetime of one context (one task run): actions that share an offset
	// reuse the parsed superblock instead of re-reading it. All volume
	// state flows through Cache, so there is nothing to flush here on
	// teardown.
	fatVolumes map[int64]*fat.Volume
}

// validateBlockCount enforces spec §4.2's "a count multiplied by 512 must
// not exceed INT32_MAX" on any block_count operand, dividing rather than
// multiplying so a huge count can't overflow the check itself.
func validateBlockCount(op string, count uint64) error {
	if count > constants.MaxWriteBytes/constants.BlockSize {
		return fwerr.New(op, fwerr.CodeValidation, "block_count*512 exceeds INT32_MAX")
	}
	return nil
}

// diagWriter adapts Diagnostics.Output to io.Writer, for wiring a
// subprocess's stdout directly into the diagnostic channel.
type diagWriter struct {
	diag Diagnostics
}

func (w *diagWriter) Write(p []byte) (int, error) {
	if err := w.diag.Output(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
