// Package apply is the task/apply driver (spec §4.8): given a selected
// task, it pre-scans its require-* predicates, computes the total progress
// a full run will report, runs on-init, binds each archive resource entry
// to the task's on-resource funlist, runs on-finish, and flushes the block
// cache. It is the one package that owns an action.Context for the
// lifetime of a task run, mirroring the retrieval pack's drive-loop shape
// (open, dispatch per unit of work, drain, close) narrowed from a
// long-running server lifecycle to a single bounded task.
package apply

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fwup-go/fwup/internal/action"
	"github.com/fwup-go/fwup/internal/archive"
	"github.com/fwup-go/fwup/internal/block"
	"github.com/fwup-go/fwup/internal/config"
	"github.com/fwup-go/fwup/internal/fwerr"
	"github.com/fwup-go/fwup/internal/logging"
	"github.com/fwup-go/fwup/internal/progress"
	"github.com/fwup-go/fwup/internal/sparse"
)

// ErrPreconditionsFailed is returned by Run when a task's require-*
// predicates did not all pass (spec §6, CLI exit code 2).
var ErrPreconditionsFailed = errors.New("apply: task preconditions not satisfied")

// Driver runs one task against an open archive and output device.
type Driver struct {
	Archive    *archive.Reader
	Config     *config.Store
	Cache      *block.Cache
	Diag       action.Diagnostics
	UnsafeMode bool

	// Logger defaults to logging.Default() when nil.
	Logger *logging.Logger
}

func (d *Driver) logger() *logging.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logging.Default()
}

// SetLogger overrides the driver's logger.
func (d *Driver) SetLogger(logger *logging.Logger) {
	d.Logger = logger
}

// Run executes taskName's full apply algorithm (spec §4.8 steps 1-6) and
// returns the reporter tracking the run, even on failure, so a caller can
// report partial progress.
func (d *Driver) Run(taskName string) (*progress.Reporter, error) {
	log := d.logger().WithTask(taskName)
	log.Debug("checking task preconditions")
	if err := d.checkRequires(taskName); err != nil {
		log.WithError(err).Info("task preconditions not satisfied")
		return nil, err
	}

	total, err := d.computeTotal(taskName)
	if err != nil {
		return nil, err
	}
	log.Debug("task progress computed", "total_units", total)
	reporter := progress.NewReporter(total)

	ctx := &action.Context{
		Cache:      d.Cache,
		Config:     d.Config,
		Diag:       d.Diag,
		Progress:   reporter,
		UnsafeMode: d.UnsafeMode,
	}

	onInit, err := d.Config.TaskOnInit(taskName)
	if err != nil {
		return reporter, fwerr.Wrap("apply", fwerr.CodeConfig, err)
	}
	if err := action.RunList(ctx, onInit); err != nil {
		return reporter, err
	}

	if err := d.runResourcePhase(ctx, taskName); err != nil {
		return reporter, err
	}

	onFinish, err := d.Config.TaskOnFinish(taskName)
	if err != nil {
		return reporter, fwerr.Wrap("apply", fwerr.CodeConfig, err)
	}
	if err := action.RunList(ctx, onFinish); err != nil {
		return reporter, err
	}

	if err := d.Cache.Flush(); err != nil {
		return reporter, fwerr.Wrap("apply", fwerr.CodeIO, err)
	}
	log.Info("task applied")
	return reporter, nil
}

// checkRequires evaluates every require-* predicate on taskName, skipping
// the unevaluated "resource-optional" metadata key (consulted separately
// via config.ResourceOptional). An unsatisfied or unrecognized predicate
// fails the task closed rather than aborting the whole run, matching
// "skip tasks that fail" (spec §4.8 step 1).
func (d *Driver) checkRequires(taskName string) error {
	for name, value := range d.Config.TaskRequires(taskName) {
		if name == "resource-optional" {
			continue
		}
		ok, err := evalRequire(d, name, value)
		if err != nil {
			return fwerr.Wrap("apply", fwerr.CodeConfig, err)
		}
		if !ok {
			return fmt.Errorf("%w: task %q: require-%s=%q not satisfied", ErrPreconditionsFailed, taskName, name, value)
		}
	}
	return nil
}

// evalRequire implements the small set of require-* predicates the driver
// can evaluate directly against the configuration surface it already has
// typed accessors for. An unknown predicate name fails closed (reports
// false, not an error) so one unrecognized require-* key skips a task
// instead of crashing the whole apply run.
func evalRequire(d *Driver, name, value string) (bool, error) {
	switch name {
	case "unsafe":
		want := value == "true"
		return d.UnsafeMode == want, nil
	case "partition-offset", "partition-type", "partition-count":
		section, idx, want, err := parsePartitionRequire(value)
		if err != nil {
			return false, err
		}
		mbr, err := d.Config.MBR(section)
		if err != nil {
			return false, err
		}
		if idx < 0 || idx >= len(mbr.Partitions) {
			return false, fmt.Errorf("require-%s: partition index %d out of range", name, idx)
		}
		p := mbr.Partitions[idx]
		switch name {
		case "partition-offset":
			return uint64(p.BlockOffset) == want, nil
		case "partition-count":
			return uint64(p.BlockCount) == want, nil
		default:
			return uint64(p.Type) == want, nil
		}
	default:
		return false, nil
	}
}

// parsePartitionRequire splits a "<mbr-section>:<partition-index>:<value>"
// require-* argument.
func parsePartitionRequire(raw string) (section string, idx int, value uint64, err error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("expected section:index:value, got %q", raw)
	}
	idx, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("bad partition index %q: %w", parts[1], err)
	}
	value, err = strconv.ParseUint(parts[2], 0, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("bad value %q: %w", parts[2], err)
	}
	return parts[0], idx, value, nil
}

// computeTotal walks on-init, every registered on-resource funlist (bound
// to a stub Resource carrying only the sizes config already knows, since
// ComputeProgress never touches Resource.Stream), and on-finish, summing
// their reported units ahead of the run pass (spec §4.8 step 2).
func (d *Driver) computeTotal(taskName string) (uint64, error) {
	ctx := &action.Context{Cache: d.Cache, Config: d.Config, UnsafeMode: d.UnsafeMode}

	var total uint64

	onInit, err := d.Config.TaskOnInit(taskName)
	if err != nil {
		return 0, fwerr.Wrap("apply", fwerr.CodeConfig, err)
	}
	units, err := action.ComputeProgressList(ctx, onInit)
	if err != nil {
		return 0, err
	}
	total += units

	for _, name := range d.Config.TaskOnResourceNames(taskName) {
		fl, err := d.Config.TaskOnResource(taskName, name)
		if err != nil {
			return 0, fwerr.Wrap("apply", fwerr.CodeConfig, err)
		}
		fr, err := d.Config.FileResource(name)
		if err != nil {
			if d.Config.ResourceOptional(taskName, name) {
				continue
			}
			return 0, fwerr.NewResource("apply", name, fwerr.CodeConfig, "on-resource event references an undeclared file-resource")
		}
		m, err := sparse.New(fr.Runs)
		if err != nil {
			return 0, fwerr.Wrap("apply", fwerr.CodeConfig, err)
		}
		ctx.Resource = &action.Resource{Name: name, DataSize: m.DataSize(), TotalSize: m.TotalSize()}
		units, err := action.ComputeProgressList(ctx, fl)
		if err != nil {
			return 0, err
		}
		total += units
	}
	ctx.Resource = nil

	onFinish, err := d.Config.TaskOnFinish(taskName)
	if err != nil {
		return 0, fwerr.Wrap("apply", fwerr.CodeConfig, err)
	}
	units, err = action.ComputeProgressList(ctx, onFinish)
	if err != nil {
		return 0, err
	}
	total += units

	return total, nil
}

// runResourcePhase reads the archive linearly, binding each data entry that
// the task has an on-resource funlist for and running it; unbound entries
// are skipped (spec §4.8 step 4). Afterward, any on-resource event never
// satisfied by an archive entry is fatal unless declared optional.
func (d *Driver) runResourcePhase(ctx *action.Context, taskName string) error {
	log := d.logger().WithTask(taskName)
	seen := make(map[string]bool)

	for {
		entry, rc, err := d.Archive.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fwerr.Wrap("apply", fwerr.CodeIO, err)
		}
		if entry.Name == archive.ManifestName {
			rc.Close()
			continue
		}

		fl, err := d.Config.TaskOnResource(taskName, entry.Name)
		if err != nil {
			rc.Close()
			return fwerr.Wrap("apply", fwerr.CodeConfig, err)
		}
		if fl == nil {
			rc.Close()
			continue
		}
		seen[entry.Name] = true

		fr, err := d.Config.FileResource(entry.Name)
		if err != nil {
			rc.Close()
			return fwerr.NewResource("apply", entry.Name, fwerr.CodeConfig, "archive entry has no matching file-resource section")
		}
		m, err := sparse.New(fr.Runs)
		if err != nil {
			rc.Close()
			return fwerr.Wrap("apply", fwerr.CodeConfig, err)
		}

		ctx.Resource = &action.Resource{
			Name:         entry.Name,
			ExpectedHash: fr.Blake2b,
			DataSize:     m.DataSize(),
			TotalSize:    m.TotalSize(),
			Stream:       sparse.NewResourceStream(rc, m),
		}
		log.WithResource(entry.Name).Debug("streaming resource")
		runErr := action.RunList(ctx, fl)
		closeErr := rc.Close()
		ctx.Resource = nil
		if runErr != nil {
			log.WithResource(entry.Name).WithError(runErr).Warn("resource funlist failed")
			return runErr
		}
		if closeErr != nil {
			return fwerr.Wrap("apply", fwerr.CodeIO, closeErr)
		}
	}

	for _, name := range d.Config.TaskOnResourceNames(taskName) {
		if seen[name] {
			continue
		}
		if d.Config.ResourceOptional(taskName, name) {
			continue
		}
		return fwerr.NewResource("apply", name, fwerr.CodeResource, "resource referenced by task is missing from the archive")
	}
	return nil
}
