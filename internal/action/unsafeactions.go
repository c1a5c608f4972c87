package action

import (
	"os"
	"os/exec"

	"github.com/fwup-go/fwup/internal/fwerr"
	"github.com/fwup-go/fwup/internal/hashverify"
)

func requireUnsafe(ctx *Context, op string) error {
	if !ctx.UnsafeMode {
		return fwerr.New(op, fwerr.CodeSafety, "requires --unsafe")
	}
	return nil
}

// path_write is FILE-only: it streams the active resource to a host path
// outside the target device, still subject to the same hash discipline.
// The unsafe gate is checked at run time, not validate time: whether the
// applying process passed --unsafe is not a property of the configuration.
func pathWriteValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 1 {
		return fwerr.New("path_write", fwerr.CodeValidation, "expected exactly one argument: host_path")
	}
	return nil
}

func pathWriteComputeProgress(ctx *Context, args []string, variant bool) (uint64, error) {
	if ctx.Resource == nil {
		return 0, fwerr.New("path_write", fwerr.CodeResource, "no active resource")
	}
	if ctx.Resource.DataSize == 0 {
		return 1, nil
	}
	return uint64(ctx.Resource.DataSize), nil
}

func pathWriteRun(ctx *Context, args []string, variant bool) error {
	if err := requireUnsafe(ctx, "path_write"); err != nil {
		return err
	}
	res := ctx.Resource
	if res == nil {
		return fwerr.New("path_write", fwerr.CodeResource, "no active resource")
	}
	if res.Consumed {
		return fwerr.NewResource("path_write", res.Name, fwerr.CodeResource, "resource already consumed by an earlier FILE action")
	}
	if err := hashverify.ValidateHex(res.ExpectedHash); err != nil {
		return fwerr.Wrap("path_write", fwerr.CodeConfig, err)
	}
	res.Consumed = true

	f, err := os.OpenFile(args[0], os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fwerr.Wrap("path_write", fwerr.CodeIO, err)
	}
	defer f.Close()

	v := hashverify.New(f)
	for {
		buf, destOffset, err := res.Stream.Next()
		if err != nil {
			return fwerr.Wrap("path_write", fwerr.CodeResource, err)
		}
		if len(buf) == 0 {
			break
		}
		if _, serr := f.Seek(destOffset, 0); serr != nil {
			return fwerr.Wrap("path_write", fwerr.CodeIO, serr)
		}
		if _, werr := v.Write(buf); werr != nil {
			return fwerr.Wrap("path_write", fwerr.CodeIO, werr)
		}
		ctx.Progress.Add(uint64(len(buf)))
	}
	if res.TotalSize > 0 {
		if err := f.Truncate(res.TotalSize); err != nil {
			return fwerr.Wrap("path_write", fwerr.CodeIO, err)
		}
	}
	if err := v.Verify(res.ExpectedHash); err != nil {
		return fwerr.NewResource("path_write", res.Name, fwerr.CodeResource, err.Error())
	}
	if res.DataSize == 0 {
		ctx.Progress.Add(1)
	}
	return nil
}

// pipe_write is FILE-only: it spawns command and pipes the active resource
// to its stdin, verifying the hash of exactly what was sent.
func pipeWriteValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 1 {
		return fwerr.New("pipe_write", fwerr.CodeValidation, "expected exactly one argument: command")
	}
	return nil
}

func pipeWriteComputeProgress(ctx *Context, args []string, variant bool) (uint64, error) {
	if ctx.Resource == nil {
		return 0, fwerr.New("pipe_write", fwerr.CodeResource, "no active resource")
	}
	if ctx.Resource.DataSize == 0 {
		return 1, nil
	}
	return uint64(ctx.Resource.DataSize), nil
}

func pipeWriteRun(ctx *Context, args []string, variant bool) error {
	if err := requireUnsafe(ctx, "pipe_write"); err != nil {
		return err
	}
	res := ctx.Resource
	if res == nil {
		return fwerr.New("pipe_write", fwerr.CodeResource, "no active resource")
	}
	if res.Consumed {
		return fwerr.NewResource("pipe_write", res.Name, fwerr.CodeResource, "resource already consumed by an earlier FILE action")
	}
	if err := hashverify.ValidateHex(res.ExpectedHash); err != nil {
		return fwerr.Wrap("pipe_write", fwerr.CodeConfig, err)
	}
	res.Consumed = true

	cmd := exec.Command("sh", "-c", args[0])
	cmd.Stdout = &diagWriter{diag: ctx.Diag}
	cmd.Stderr = &diagWriter{diag: ctx.Diag}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fwerr.Wrap("pipe_write", fwerr.CodeIO, err)
	}
	if err := cmd.Start(); err != nil {
		return fwerr.Wrap("pipe_write", fwerr.CodeIO, err)
	}

	v := hashverify.New(stdin)
	var runErr error
	for {
		buf, _, nerr := res.Stream.Next()
		if nerr != nil {
			runErr = fwerr.Wrap("pipe_write", fwerr.CodeResource, nerr)
			break
		}
		if len(buf) == 0 {
			break
		}
		if _, werr := v.Write(buf); werr != nil {
			runErr = fwerr.Wrap("pipe_write", fwerr.CodeIO, werr)
			break
		}
		ctx.Progress.Add(uint64(len(buf)))
	}
	stdin.Close()
	if waitErr := cmd.Wait(); waitErr != nil && runErr == nil {
		runErr = fwerr.Wrap("pipe_write", fwerr.CodeIO, waitErr)
	}
	if runErr != nil {
		return runErr
	}
	if err := v.Verify(res.ExpectedHash); err != nil {
		return fwerr.NewResource("pipe_write", res.Name, fwerr.CodeResource, err.Error())
	}
	if res.DataSize == 0 {
		ctx.Progress.Add(1)
	}
	return nil
}

// execute spawns command, forwarding its stdout and stderr to the
// diagnostic channel, and fails the task if it exits non-zero.
func executeValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 1 {
		return fwerr.New("execute", fwerr.CodeValidation, "expected exactly one argument: command")
	}
	return nil
}

func executeRun(ctx *Context, args []string, variant bool) error {
	if err := requireUnsafe(ctx, "execute"); err != nil {
		return err
	}
	cmd := exec.Command("sh", "-c", args[0])
	cmd.Stdout = &diagWriter{diag: ctx.Diag}
	cmd.Stderr = &diagWriter{diag: ctx.Diag}
	if err := cmd.Run(); err != nil {
		return fwerr.Wrap("execute", fwerr.CodeIO, err)
	}
	return nil
}
