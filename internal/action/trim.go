package action

import (
	"strconv"

	"github.com/fwup-go/fwup/internal/constants"
	"github.com/fwup-go/fwup/internal/fwerr"
)

// trim discards block_count blocks starting at block_offset, counting one
// progress unit per 128 KiB (spec §4.2) regardless of how many actual
// device blocks that spans.
func trimValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 2 {
		return fwerr.New("trim", fwerr.CodeValidation, "expected block_offset, block_count")
	}
	if _, err := strconv.ParseUint(args[0], 0, 64); err != nil {
		return fwerr.New("trim", fwerr.CodeValidation, "block_offset must be a non-negative integer")
	}
	count, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil {
		return fwerr.New("trim", fwerr.CodeValidation, "block_count must be a non-negative integer")
	}
	return validateBlockCount("trim", count)
}

func trimComputeProgress(ctx *Context, args []string, variant bool) (uint64, error) {
	count, _ := strconv.ParseUint(args[1], 0, 64)
	byteLen := count * constants.BlockSize
	return (byteLen + constants.TrimUnitSize - 1) / constants.TrimUnitSize, nil
}

func trimRun(ctx *Context, args []string, variant bool) error {
	blockOffset, _ := strconv.ParseUint(args[0], 0, 64)
	count, _ := strconv.ParseUint(args[1], 0, 64)

	off := int64(blockOffset) * constants.BlockSize
	byteLen := int64(count) * constants.BlockSize
	if err := ctx.Cache.Trim(off, byteLen, true); err != nil {
		return fwerr.Wrap("trim", fwerr.CodeIO, err)
	}

	units := (uint64(byteLen) + constants.TrimUnitSize - 1) / constants.TrimUnitSize
	ctx.Progress.Add(units)
	return nil
}
