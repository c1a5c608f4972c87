// Package progress aggregates the progress units actions report during a
// compute_progress/run walk (spec §4.2, §2's progress reporter) and emits
// them as framed status records a driving process can read off a pipe
// (spec §6's "length-prefixed records").
package progress

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// Reporter tracks total expected progress units (computed ahead of time by
// the compute_progress pass) against units reported so far by the run
// pass. Safe for concurrent Add calls, though the apply driver is
// currently single-threaded (spec §5).
type Reporter struct {
	total    uint64
	reported atomic.Uint64
}

// NewReporter creates a Reporter against a precomputed total unit count.
func NewReporter(total uint64) *Reporter {
	return &Reporter{total: total}
}

// Add implements action.Progress: it accumulates units reported by a
// running action.
func (r *Reporter) Add(units uint64) {
	r.reported.Add(units)
}

// Reported returns the cumulative unit count reported so far.
func (r *Reporter) Reported() uint64 { return r.reported.Load() }

// Total returns the precomputed total unit count.
func (r *Reporter) Total() uint64 { return r.total }

// Percent returns the completion fraction in [0, 100]. A zero total
// (an empty task) reports 100.
func (r *Reporter) Percent() float64 {
	if r.total == 0 {
		return 100
	}
	pct := float64(r.reported.Load()) / float64(r.total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// HumanUnits renders reported/total as human-scaled byte counts, for the
// non-framed CLI status line (spec §6's unframed progress mode).
func (r *Reporter) HumanUnits() string {
	return fmt.Sprintf("%s / %s", humanize.Bytes(r.reported.Load()), humanize.Bytes(r.total))
}

// recordType identifies a framed diagnostic record (spec §6).
type recordType byte

const (
	recordProgress recordType = 1
	recordInfo     recordType = 2
	recordError    recordType = 3
)

// FrameWriter emits the framed diagnostic channel: one byte record type,
// one big-endian uint32 payload length, then the payload itself.
type FrameWriter struct {
	out     io.Writer
	lastErr error
}

// NewFrameWriter wraps out as a framed diagnostic sink.
func NewFrameWriter(out io.Writer) *FrameWriter {
	return &FrameWriter{out: out}
}

func (f *FrameWriter) writeFrame(kind recordType, payload []byte) error {
	header := make([]byte, 5)
	header[0] = byte(kind)
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := f.out.Write(header); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := f.out.Write(payload)
	return err
}

// Progress emits the reporter's current state as a "<reported> <total>"
// ASCII payload.
func (f *FrameWriter) Progress(r *Reporter) error {
	payload := fmt.Sprintf("%d %d", r.Reported(), r.Total())
	return f.writeFrame(recordProgress, []byte(payload))
}

// Info emits an informational message (the `info` action's output).
// Implements action.Diagnostics, whose Info has no error return since
// losing a best-effort diagnostic message is not itself fatal to the apply
// run; the underlying write error, if any, is retained and surfaced
// through LastErr.
func (f *FrameWriter) Info(message string) {
	if err := f.writeFrame(recordInfo, []byte(message)); err != nil {
		f.lastErr = err
	}
}

// LastErr returns the most recent error from a best-effort Info write, if
// any.
func (f *FrameWriter) LastErr() error { return f.lastErr }

// Error emits an error message (the apply driver's final diagnostic before
// aborting a task).
func (f *FrameWriter) Error(message string) error {
	return f.writeFrame(recordError, []byte(message))
}

// Output forwards raw subprocess output (execute/pipe_write) as an info
// record, satisfying action.Diagnostics alongside Info.
func (f *FrameWriter) Output(p []byte) error {
	return f.writeFrame(recordInfo, p)
}
