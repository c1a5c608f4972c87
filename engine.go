package fwup

import (
	"errors"
	"io"

	"github.com/fwup-go/fwup/internal/action"
	"github.com/fwup-go/fwup/internal/apply"
	"github.com/fwup-go/fwup/internal/archive"
	"github.com/fwup-go/fwup/internal/block"
	"github.com/fwup-go/fwup/internal/blocksink"
	"github.com/fwup-go/fwup/internal/config"
	"github.com/fwup-go/fwup/internal/create"
	"github.com/fwup-go/fwup/internal/progress"
)

// ErrPreconditionsFailed is returned by Apply and Verify when the selected
// task's require-* predicates did not all pass (spec §6 CLI exit code 2).
var ErrPreconditionsFailed = apply.ErrPreconditionsFailed

// Create assembles a firmware archive from store's file-resource
// declarations — hashing and measuring each host-backed resource, then
// writing the manifest and every resource's bytes to out (spec §6 CLI
// mode "create").
func Create(store *config.Store, out io.Writer) error {
	b := &create.Builder{Config: store}
	return b.Build(out)
}

// Apply runs taskName from the archive at (ra, size) against sink, the
// real output device or file (spec §6 CLI mode "apply"). unsafeMode gates
// path_write, pipe_write, and execute.
func Apply(ra io.ReaderAt, size int64, sink blocksink.Sink, store *config.Store, taskName string, diag action.Diagnostics, unsafeMode bool) (*progress.Reporter, error) {
	reader, err := archive.NewReader(ra, size)
	if err != nil {
		return nil, WrapError("apply", CodeIO, err)
	}
	cache := block.NewCache(sink, 0)
	d := &apply.Driver{Archive: reader, Config: store, Cache: cache, Diag: diag, UnsafeMode: unsafeMode}
	return d.Run(taskName)
}

// Verify runs taskName the same way Apply does, but against a discard sink
// that only observes the hash and progress a real run would produce,
// never touching a device (spec §6 CLI mode "verify"; SPEC_FULL
// supplemented feature). Unsafe actions are always rejected here,
// regardless of what the caller would otherwise pass to Apply: path_write,
// pipe_write, and execute act on the host directly, not through the block
// cache, so a discard sink cannot contain their side effects.
func Verify(ra io.ReaderAt, size int64, store *config.Store, taskName string, diag action.Diagnostics) (*progress.Reporter, error) {
	reader, err := archive.NewReader(ra, size)
	if err != nil {
		return nil, WrapError("verify", CodeIO, err)
	}
	cache := block.NewCache(&blocksink.DiscardSink{}, 0)
	d := &apply.Driver{Archive: reader, Config: store, Cache: cache, Diag: diag, UnsafeMode: false}
	return d.Run(taskName)
}

// List enumerates an archive's entries in stored order, manifest included
// (spec §6 CLI mode "list"; SPEC_FULL supplemented feature).
func List(ra io.ReaderAt, size int64) ([]string, error) {
	reader, err := archive.NewReader(ra, size)
	if err != nil {
		return nil, WrapError("list", CodeIO, err)
	}
	var names []string
	for {
		entry, rc, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, WrapError("list", CodeIO, err)
		}
		rc.Close()
		names = append(names, entry.Name)
	}
	return names, nil
}

// Metadata returns an archive's manifest entry verbatim (spec §6 CLI mode
// "metadata"; SPEC_FULL supplemented feature).
func Metadata(ra io.ReaderAt, size int64) (string, error) {
	reader, err := archive.NewReader(ra, size)
	if err != nil {
		return "", WrapError("metadata", CodeIO, err)
	}
	for {
		entry, rc, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", WrapError("metadata", CodeIO, err)
		}
		if entry.Name != archive.ManifestName {
			rc.Close()
			continue
		}
		data, readErr := io.ReadAll(rc)
		rc.Close()
		if readErr != nil {
			return "", WrapError("metadata", CodeIO, readErr)
		}
		return string(data), nil
	}
	return "", NewError("metadata", CodeFormat, "archive has no manifest entry")
}
