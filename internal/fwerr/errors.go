// Package fwerr is the structured error taxonomy from spec §7, factored out
// of the root fwup package so that internal/action and internal/apply (both
// imported by the root engine) can return it without importing the root
// package back.
package fwerr

import (
	"errors"
	"fmt"
)

// Code is the top-level error taxonomy from spec §7.
type Code string

const (
	// CodeValidation covers argument shape or count wrong, unknown action,
	// out-of-range integer.
	CodeValidation Code = "validation_error"

	// CodeConfig covers a referenced config section missing, or a hash
	// missing/wrong length.
	CodeConfig Code = "config_error"

	// CodeResource covers stream underrun, hash mismatch, double-write.
	CodeResource Code = "resource_error"

	// CodeIO covers device read/write failure, subprocess spawn failure.
	CodeIO Code = "io_error"

	// CodeFormat covers a corrupt U-Boot env (when not recovering) or a
	// malformed MBR config.
	CodeFormat Code = "format_error"

	// CodeSafety covers an unsafe action invoked without the unsafe flag.
	CodeSafety Code = "safety_error"

	// CodeUserAbort is the `error` action.
	CodeUserAbort Code = "user_abort"
)

// Error is the structured error every action, the interpreter, and the
// apply driver return. There is no process-wide last-error string: spec §9
// explicitly asks for that to be plumbed as explicit return values instead,
// so every validate/compute_progress/run returns (T, error) directly.
type Error struct {
	// Op is the action or phase that failed (e.g. "raw_write", "fat_mkfs").
	Op string

	// Resource is the resource title involved, if any.
	Resource string

	Code Code

	Msg string

	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	switch {
	case e.Op != "" && e.Resource != "":
		return fmt.Sprintf("fwup: %s: %s (resource=%s)", e.Op, msg, e.Resource)
	case e.Op != "":
		return fmt.Sprintf("fwup: %s: %s", e.Op, msg)
	default:
		return fmt.Sprintf("fwup: %s", msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// New creates a structured error for the named operation.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewResource creates a structured error naming the resource involved.
func NewResource(op, resource string, code Code, msg string) *Error {
	return &Error{Op: op, Resource: resource, Code: code, Msg: msg}
}

// Wrap wraps an existing error with op/code context.
func Wrap(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	if fe, ok := inner.(*Error); ok {
		wrapped := *fe
		wrapped.Op = op
		return &wrapped
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// Is reports whether err is (or wraps) an *Error with the given code.
func Is(err error, code Code) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}
