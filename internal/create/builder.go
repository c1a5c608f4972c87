// Package create is the assembly side implied by the engine's purpose
// ("produces a... firmware archive"): it computes each declared
// file-resource's length and BLAKE2b-256 digest from its host path,
// updates the configuration store with those values, renders the
// manifest, and streams the manifest plus every resource payload into an
// archive writer in stored order. Archive signing is explicitly out of
// scope (spec §1); this stops at producing the unsigned, content-addressed
// archive.
package create

import (
	"fmt"
	"io"
	"os"

	"github.com/minio/blake2b-simd"

	"github.com/fwup-go/fwup/internal/action"
	"github.com/fwup-go/fwup/internal/archive"
	"github.com/fwup-go/fwup/internal/config"
)

// Builder assembles an archive from a populated configuration store: tasks,
// MBR/uboot-environment sections, and file-resource declarations naming a
// HostPath. HostPath-less resources (declared but supplied some other way)
// are left as the caller set them and are not streamed into the archive.
type Builder struct {
	Config *config.Store
}

// Build validates every task's funlists, hashes and measures every
// host-backed file-resource, renders the resulting manifest, and writes
// the manifest followed by each resource's bytes into out. Validation
// happens here, before any archive byte is written, so a malformed action
// tuple surfaces at creation time rather than halfway through an apply.
func (b *Builder) Build(out io.Writer) error {
	if err := b.validateTasks(); err != nil {
		return err
	}

	names := b.Config.FileResourceNames()

	hashed := make(map[string]bool, len(names))
	for _, name := range names {
		fr, err := b.Config.FileResource(name)
		if err != nil {
			return fmt.Errorf("create: file-resource %q: %w", name, err)
		}
		if fr.HostPath == "" {
			continue
		}
		measured, err := measure(fr)
		if err != nil {
			return fmt.Errorf("create: file-resource %q: %w", name, err)
		}
		b.Config.SetFileResource(name, measured)
		hashed[name] = true
	}

	manifest, err := b.Config.Render()
	if err != nil {
		return fmt.Errorf("create: render manifest: %w", err)
	}

	w := archive.NewWriter(out)

	mw, err := w.Create(archive.ManifestName)
	if err != nil {
		return fmt.Errorf("create: write manifest entry: %w", err)
	}
	if _, err := mw.Write(manifest); err != nil {
		return fmt.Errorf("create: write manifest entry: %w", err)
	}

	for _, name := range names {
		if !hashed[name] {
			continue
		}
		fr, err := b.Config.FileResource(name)
		if err != nil {
			return fmt.Errorf("create: file-resource %q: %w", name, err)
		}
		if err := streamResource(w, name, fr.HostPath); err != nil {
			return fmt.Errorf("create: stream resource %q: %w", name, err)
		}
	}

	return w.Close()
}

// validateTasks runs the Validate phase over every declared task's
// on-init, on-resource, and on-finish funlists. On-resource lists carry a
// stub resource binding so FILE-only actions resolve; Validate never
// touches the stream.
func (b *Builder) validateTasks() error {
	for _, task := range b.Config.TaskNames() {
		ctx := &action.Context{Config: b.Config}

		onInit, err := b.Config.TaskOnInit(task)
		if err != nil {
			return fmt.Errorf("create: task %q: %w", task, err)
		}
		if err := action.ValidateList(ctx, onInit); err != nil {
			return fmt.Errorf("create: task %q on-init: %w", task, err)
		}

		for _, name := range b.Config.TaskOnResourceNames(task) {
			fl, err := b.Config.TaskOnResource(task, name)
			if err != nil {
				return fmt.Errorf("create: task %q on-resource %q: %w", task, name, err)
			}
			ctx.Resource = &action.Resource{Name: name}
			if err := action.ValidateList(ctx, fl); err != nil {
				return fmt.Errorf("create: task %q on-resource %q: %w", task, name, err)
			}
		}
		ctx.Resource = nil

		onFinish, err := b.Config.TaskOnFinish(task)
		if err != nil {
			return fmt.Errorf("create: task %q: %w", task, err)
		}
		if err := action.ValidateList(ctx, onFinish); err != nil {
			return fmt.Errorf("create: task %q on-finish: %w", task, err)
		}
	}
	return nil
}

// measure computes fr's length and BLAKE2b-256 digest from its host file,
// treating the whole file as a single dense data run: create-side sparse
// detection (host-file holes) is out of scope here since nothing in this
// engine's contract describes deriving destination sparseness from the
// source file rather than from explicit action sequencing.
func measure(fr config.FileResource) (config.FileResource, error) {
	f, err := os.Open(fr.HostPath)
	if err != nil {
		return config.FileResource{}, err
	}
	defer f.Close()

	h := blake2b.New256()
	length, err := io.Copy(h, f)
	if err != nil {
		return config.FileResource{}, err
	}

	fr.Length = length
	fr.Blake2b = fmt.Sprintf("%x", h.Sum(nil))
	fr.Runs = []int64{length}
	return fr, nil
}

func streamResource(w *archive.Writer, name, hostPath string) error {
	f, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer f.Close()

	ew, err := w.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(ew, f)
	return err
}
