package action

import (
	"os"

	"github.com/fwup-go/fwup/internal/fwerr"
	"github.com/fwup-go/fwup/internal/mbr"
)

// mbr_write renders a named `mbr.<section_name>` config section to 512
// bytes and writes it at block 0.
func mbrWriteValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 1 {
		return fwerr.New("mbr_write", fwerr.CodeValidation, "expected exactly one argument: section_name")
	}
	if _, err := ctx.Config.MBR(args[0]); err != nil {
		return fwerr.Wrap("mbr_write", fwerr.CodeConfig, err)
	}
	return nil
}

func mbrWriteComputeProgress(ctx *Context, args []string, variant bool) (uint64, error) {
	return 1, nil
}

func mbrWriteRun(ctx *Context, args []string, variant bool) error {
	cfg, err := ctx.Config.MBR(args[0])
	if err != nil {
		return fwerr.Wrap("mbr_write", fwerr.CodeConfig, err)
	}

	img := mbr.Image{}
	if cfg.BootstrapCodeHostPath != "" {
		code, err := os.ReadFile(cfg.BootstrapCodeHostPath)
		if err != nil {
			return fwerr.Wrap("mbr_write", fwerr.CodeIO, err)
		}
		if len(code) > len(img.Bootstrap) {
			return fwerr.New("mbr_write", fwerr.CodeConfig, "bootstrap code exceeds 440 bytes")
		}
		copy(img.Bootstrap[:], code)
	}
	for i, p := range cfg.Partitions {
		img.Partitions[i] = mbr.Partition{
			Boot:        p.Boot,
			Type:        p.Type,
			BlockOffset: p.BlockOffset,
			BlockCount:  p.BlockCount,
		}
	}

	buf, err := img.Render()
	if err != nil {
		return fwerr.Wrap("mbr_write", fwerr.CodeFormat, err)
	}
	if err := ctx.Cache.Pwrite(buf[:], 0, false); err != nil {
		return fwerr.Wrap("mbr_write", fwerr.CodeIO, err)
	}
	ctx.Progress.Add(1)
	return nil
}
