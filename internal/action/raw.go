package action

import (
	"fmt"
	"strconv"

	"github.com/fwup-go/fwup/internal/block"
	"github.com/fwup-go/fwup/internal/constants"
	"github.com/fwup-go/fwup/internal/fwerr"
	"github.com/fwup-go/fwup/internal/hashverify"
)

// raw_write streams the active resource straight to the output device at
// block_offset*512. It is FILE-only: it is the action that actually
// consumes ctx.Resource.Stream and checks the running hash against the
// manifest digest once the stream is drained.
func rawWriteValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 1 {
		return fwerr.New("raw_write", fwerr.CodeValidation, "expected exactly one argument: block_offset")
	}
	if _, err := strconv.ParseUint(args[0], 0, 64); err != nil {
		return fwerr.New("raw_write", fwerr.CodeValidation, "block_offset must be a non-negative integer")
	}
	return nil
}

func rawWriteComputeProgress(ctx *Context, args []string, variant bool) (uint64, error) {
	if ctx.Resource == nil {
		return 0, fwerr.New("raw_write", fwerr.CodeResource, "no active resource")
	}
	if ctx.Resource.DataSize == 0 {
		return 1, nil
	}
	return uint64(ctx.Resource.DataSize), nil
}

func rawWriteRun(ctx *Context, args []string, variant bool) error {
	blockOffset, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return fwerr.New("raw_write", fwerr.CodeValidation, "block_offset must be a non-negative integer")
	}
	res := ctx.Resource
	if res == nil {
		return fwerr.New("raw_write", fwerr.CodeResource, "no active resource")
	}
	if res.Consumed {
		return fwerr.NewResource("raw_write", res.Name, fwerr.CodeResource, "resource already consumed by an earlier FILE action")
	}
	if err := hashverify.ValidateHex(res.ExpectedHash); err != nil {
		return fwerr.Wrap("raw_write", fwerr.CodeConfig, err)
	}
	res.Consumed = true

	base := int64(blockOffset) * constants.BlockSize
	cw := &cacheWriter{pad: block.NewPadWriter(ctx.Cache), base: base}
	v := hashverify.New(cw)

	var lastEnd int64
	for {
		buf, destOffset, err := res.Stream.Next()
		if err != nil {
			return fwerr.Wrap("raw_write", fwerr.CodeResource, err)
		}
		if len(buf) == 0 {
			break
		}
		cw.pos = destOffset
		if _, err := v.Write(buf); err != nil {
			return fwerr.Wrap("raw_write", fwerr.CodeIO, err)
		}
		ctx.Progress.Add(uint64(len(buf)))
		end := destOffset + int64(len(buf))
		if end > lastEnd {
			lastEnd = end
		}
	}

	if err := cw.pad.Flush(); err != nil {
		return fwerr.Wrap("raw_write", fwerr.CodeIO, err)
	}

	if v.BytesWritten() != res.DataSize {
		return fwerr.NewResource("raw_write", res.Name, fwerr.CodeResource,
			fmt.Sprintf("wrote %d bytes, resource data size is %d", v.BytesWritten(), res.DataSize))
	}
	if err := v.Verify(res.ExpectedHash); err != nil {
		return fwerr.NewResource("raw_write", res.Name, fwerr.CodeResource, err.Error())
	}

	if res.DataSize == 0 {
		ctx.Progress.Add(1)
	}

	// A trailing hole never gets an explicit write, so force device length
	// by touching the final byte of the resource's total address space.
	if res.TotalSize > lastEnd {
		finalOff := base + res.TotalSize - 1
		if err := ctx.Cache.Pwrite([]byte{0}, finalOff, true); err != nil {
			return fwerr.Wrap("raw_write", fwerr.CodeIO, err)
		}
	}
	return nil
}

// cacheWriter adapts a pad-to-block writer to io.Writer, writing each call
// at base+pos. The caller sets pos before every Write to place each
// resource chunk at its destination offset (chunks may be non-contiguous
// across a hole), so hashverify.Verifier can tee through it without
// knowing about block addressing. The pad writer coalesces the stream's
// odd-sized chunks so the cache sees block-aligned requests; the caller
// must Flush it once the stream is drained.
type cacheWriter struct {
	pad  *block.PadWriter
	base int64
	pos  int64
}

func (w *cacheWriter) Write(p []byte) (int, error) {
	if err := w.pad.Pwrite(p, w.base+w.pos); err != nil {
		return 0, err
	}
	w.pos += int64(len(p))
	return len(p), nil
}

// raw_memset writes count 512-byte blocks of a fixed byte value starting at
// block_offset, for zeroing or poisoning a region without a backing
// resource (e.g. before uboot_recover in a test rig).
func rawMemsetValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 3 {
		return fwerr.New("raw_memset", fwerr.CodeValidation, "expected block_offset, block_count, byte_value")
	}
	if _, err := strconv.ParseUint(args[0], 0, 64); err != nil {
		return fwerr.New("raw_memset", fwerr.CodeValidation, "block_offset must be a non-negative integer")
	}
	count, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil {
		return fwerr.New("raw_memset", fwerr.CodeValidation, "block_count must be a non-negative integer")
	}
	if err := validateBlockCount("raw_memset", count); err != nil {
		return err
	}
	v, err := strconv.ParseUint(args[2], 0, 8)
	if err != nil || v > 0xFF {
		return fwerr.New("raw_memset", fwerr.CodeValidation, "byte_value must fit in a byte")
	}
	return nil
}

func rawMemsetComputeProgress(ctx *Context, args []string, variant bool) (uint64, error) {
	count, _ := strconv.ParseUint(args[1], 0, 64)
	return count * constants.BlockSize, nil
}

func rawMemsetRun(ctx *Context, args []string, variant bool) error {
	blockOffset, _ := strconv.ParseUint(args[0], 0, 64)
	count, _ := strconv.ParseUint(args[1], 0, 64)
	value, _ := strconv.ParseUint(args[2], 0, 8)

	block := make([]byte, constants.BlockSize)
	for i := range block {
		block[i] = byte(value)
	}
	for i := uint64(0); i < count; i++ {
		off := int64(blockOffset+i) * constants.BlockSize
		if err := ctx.Cache.Pwrite(block, off, true); err != nil {
			return fwerr.Wrap("raw_memset", fwerr.CodeIO, err)
		}
		ctx.Progress.Add(constants.BlockSize)
	}
	return nil
}
