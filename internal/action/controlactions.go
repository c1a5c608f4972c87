package action

import "github.com/fwup-go/fwup/internal/fwerr"

// error aborts the task with a user-supplied message.
func errorValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 1 {
		return fwerr.New("error", fwerr.CodeValidation, "expected exactly one argument: message")
	}
	return nil
}

func errorRun(ctx *Context, args []string, variant bool) error {
	return fwerr.New("error", fwerr.CodeUserAbort, args[0])
}

// info emits a message on the diagnostic channel without affecting control
// flow.
func infoValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 1 {
		return fwerr.New("info", fwerr.CodeValidation, "expected exactly one argument: message")
	}
	return nil
}

func infoRun(ctx *Context, args []string, variant bool) error {
	ctx.Diag.Info(args[0])
	return nil
}
