package fwup

import "github.com/fwup-go/fwup/internal/fwerr"

// Code is the top-level error taxonomy from spec §7.
type Code = fwerr.Code

const (
	// CodeValidation covers argument shape or count wrong, unknown action,
	// out-of-range integer.
	CodeValidation = fwerr.CodeValidation

	// CodeConfig covers a referenced config section missing, or a hash
	// missing/wrong length.
	CodeConfig = fwerr.CodeConfig

	// CodeResource covers stream underrun, hash mismatch, double-write.
	CodeResource = fwerr.CodeResource

	// CodeIO covers device read/write failure, subprocess spawn failure.
	CodeIO = fwerr.CodeIO

	// CodeFormat covers a corrupt U-Boot env (when not recovering) or a
	// malformed MBR config.
	CodeFormat = fwerr.CodeFormat

	// CodeSafety covers an unsafe action invoked without the unsafe flag.
	CodeSafety = fwerr.CodeSafety

	// CodeUserAbort is the `error` action.
	CodeUserAbort = fwerr.CodeUserAbort
)

// Error is the structured error every action, the interpreter, and the
// apply driver return. There is no process-wide last-error string: spec §9
// explicitly asks for that to be plumbed as explicit return values instead,
// so every validate/compute_progress/run returns (T, error) directly.
type Error = fwerr.Error

// NewError creates a structured error for the named operation.
func NewError(op string, code Code, msg string) *Error {
	return fwerr.New(op, code, msg)
}

// NewResourceError creates a structured error naming the resource involved.
func NewResourceError(op, resource string, code Code, msg string) *Error {
	return fwerr.NewResource(op, resource, code, msg)
}

// WrapError wraps an existing error with fwup op/code context.
func WrapError(op string, code Code, inner error) *Error {
	return fwerr.Wrap(op, code, inner)
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code Code) bool {
	return fwerr.Is(err, code)
}
