package action

import (
	"github.com/fwup-go/fwup/internal/constants"
	"github.com/fwup-go/fwup/internal/fwerr"
	"github.com/fwup-go/fwup/internal/uboot"
)

func ubootEnvRange(ctx *Context, sectionName string) (offset, size int64, err error) {
	cfg, cerr := ctx.Config.UbootEnvironment(sectionName)
	if cerr != nil {
		return 0, 0, fwerr.Wrap("uboot", fwerr.CodeConfig, cerr)
	}
	return int64(cfg.BlockOffset) * constants.BlockSize, int64(cfg.BlockCount) * constants.BlockSize, nil
}

// uboot_clearenv overwrites a named environment block with an empty,
// freshly checksummed table.
func ubootClearenvValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 1 {
		return fwerr.New("uboot_clearenv", fwerr.CodeValidation, "expected section_name")
	}
	if _, _, err := ubootEnvRange(ctx, args[0]); err != nil {
		return err
	}
	return nil
}

func ubootClearenvRun(ctx *Context, args []string, variant bool) error {
	offset, size, err := ubootEnvRange(ctx, args[0])
	if err != nil {
		return err
	}
	if err := uboot.ClearEnv(ctx.Cache, offset, size); err != nil {
		return fwerr.Wrap("uboot_clearenv", fwerr.CodeIO, err)
	}
	ctx.Progress.Add(1)
	return nil
}

// uboot_setenv sets a single variable within a named environment block.
func ubootSetenvValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 3 {
		return fwerr.New("uboot_setenv", fwerr.CodeValidation, "expected section_name, name, value")
	}
	if _, _, err := ubootEnvRange(ctx, args[0]); err != nil {
		return err
	}
	return nil
}

func ubootSetenvRun(ctx *Context, args []string, variant bool) error {
	offset, size, err := ubootEnvRange(ctx, args[0])
	if err != nil {
		return err
	}
	if err := uboot.SetVar(ctx.Cache, offset, size, args[1], args[2]); err != nil {
		return fwerr.Wrap("uboot_setenv", fwerr.CodeIO, err)
	}
	ctx.Progress.Add(1)
	return nil
}

// uboot_unsetenv removes a single variable from a named environment block.
func ubootUnsetenvValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 2 {
		return fwerr.New("uboot_unsetenv", fwerr.CodeValidation, "expected section_name, name")
	}
	if _, _, err := ubootEnvRange(ctx, args[0]); err != nil {
		return err
	}
	return nil
}

func ubootUnsetenvRun(ctx *Context, args []string, variant bool) error {
	offset, size, err := ubootEnvRange(ctx, args[0])
	if err != nil {
		return err
	}
	if err := uboot.UnsetVar(ctx.Cache, offset, size, args[1]); err != nil {
		return fwerr.Wrap("uboot_unsetenv", fwerr.CodeIO, err)
	}
	ctx.Progress.Add(1)
	return nil
}

// uboot_recover tolerates a corrupt environment block by reinitializing it
// to empty, rather than failing the whole apply over a CRC mismatch left
// by a prior interrupted write.
func ubootRecoverValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 1 {
		return fwerr.New("uboot_recover", fwerr.CodeValidation, "expected section_name")
	}
	if _, _, err := ubootEnvRange(ctx, args[0]); err != nil {
		return err
	}
	return nil
}

func ubootRecoverRun(ctx *Context, args []string, variant bool) error {
	offset, size, err := ubootEnvRange(ctx, args[0])
	if err != nil {
		return err
	}
	if _, err := uboot.RecoverAt(ctx.Cache, offset, size); err != nil {
		return fwerr.Wrap("uboot_recover", fwerr.CodeFormat, err)
	}
	ctx.Progress.Add(1)
	return nil
}
