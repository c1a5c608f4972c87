package action

import (
	"strconv"
	"strings"

	"github.com/fwup-go/fwup/internal/config"
	"github.com/fwup-go/fwup/internal/constants"
	"github.com/fwup-go/fwup/internal/fwerr"
)

// Invocation is one decoded funlist tuple: a base action name, its `!`
// variant bit, and its operands.
type Invocation struct {
	Name    string
	Variant bool
	Args    []string
}

// ParseFunList decodes a `[argc, name, arg1, ...]` funlist into a sequence
// of invocations. argc counts the name plus its operands, so a single-arg
// action like raw_write carries argc=2.
func ParseFunList(fl config.FunList) ([]Invocation, error) {
	var out []Invocation
	i := 0
	for i < len(fl) {
		n, err := strconv.Atoi(fl[i])
		if err != nil || n <= 0 || n > constants.MaxFunArgs {
			return nil, fwerr.New("funlist", fwerr.CodeValidation,
				"invalid argc at funlist offset "+strconv.Itoa(i))
		}
		if i+1+n > len(fl) {
			return nil, fwerr.New("funlist", fwerr.CodeValidation, "truncated funlist tuple")
		}

		rawName := fl[i+1]
		args := append([]string(nil), fl[i+2:i+1+n]...)
		name, variant := splitVariant(rawName)
		out = append(out, Invocation{Name: name, Variant: variant, Args: args})
		i += 1 + n
	}
	return out, nil
}

func splitVariant(name string) (string, bool) {
	if strings.HasSuffix(name, "!") {
		return strings.TrimSuffix(name, "!"), true
	}
	return name, false
}

// lookup resolves inv against the registry, rejecting an unknown name, a
// `!` variant on an action that doesn't support it, and a FileOnly action
// dispatched outside an on-resource funlist (ctx.Resource == nil) — the
// single place spec §4.1's "FileOnly actions may only appear in an
// on-resource funlist" is enforced, rather than leaving it to each
// FileOnly action's own ad hoc nil check.
func lookup(ctx *Context, inv Invocation) (Action, error) {
	a, ok := registry[inv.Name]
	if !ok {
		return Action{}, fwerr.New(inv.Name, fwerr.CodeValidation, "unknown action")
	}
	if inv.Variant && !a.SupportsVariant {
		return Action{}, fwerr.New(inv.Name, fwerr.CodeValidation, "action does not accept the ! variant")
	}
	if a.FileOnly && ctx.Resource == nil {
		return Action{}, fwerr.New(inv.Name, fwerr.CodeResource, "action is file-only but no active resource")
	}
	return a, nil
}

// ValidateList runs every invocation's Validate phase. Used at creation
// time, before a funlist is ever applied.
func ValidateList(ctx *Context, fl config.FunList) error {
	invs, err := ParseFunList(fl)
	if err != nil {
		return err
	}
	for _, inv := range invs {
		a, err := lookup(ctx, inv)
		if err != nil {
			return err
		}
		if err := validate(ctx, a, inv); err != nil {
			return err
		}
	}
	return nil
}

// validate runs inv's Validate phase, if it has one. Every walker calls it
// before its own phase function: the funlist comes from the archive's
// manifest, which nothing guarantees was produced by a well-behaved create
// pass, so Run and ComputeProgress may only assume argument shape and range
// that Validate has just re-checked.
func validate(ctx *Context, a Action, inv Invocation) error {
	if a.Validate == nil {
		return nil
	}
	return a.Validate(ctx, inv.Args, inv.Variant)
}

// ComputeProgressList sums the progress units every invocation in fl will
// report, without running any of them (spec §4.2, accumulated before any
// run executes).
func ComputeProgressList(ctx *Context, fl config.FunList) (uint64, error) {
	invs, err := ParseFunList(fl)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, inv := range invs {
		a, err := lookup(ctx, inv)
		if err != nil {
			return 0, err
		}
		if err := validate(ctx, a, inv); err != nil {
			return 0, err
		}
		if a.ComputeProgress == nil {
			continue
		}
		units, err := a.ComputeProgress(ctx, inv.Args, inv.Variant)
		if err != nil {
			return 0, err
		}
		total += units
	}
	return total, nil
}

// RunList executes every invocation in fl in order, aborting on the first
// error.
func RunList(ctx *Context, fl config.FunList) error {
	invs, err := ParseFunList(fl)
	if err != nil {
		return err
	}
	for _, inv := range invs {
		a, err := lookup(ctx, inv)
		if err != nil {
			return err
		}
		if err := validate(ctx, a, inv); err != nil {
			return err
		}
		if err := a.Run(ctx, inv.Args, inv.Variant); err != nil {
			return err
		}
	}
	return nil
}
