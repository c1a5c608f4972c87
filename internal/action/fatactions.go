package action

import (
	"strconv"

	"github.com/fwup-go/fwup/internal/fat"
	"github.com/fwup-go/fwup/internal/fwerr"
	"github.com/fwup-go/fwup/internal/hashverify"
)

func parseBlockOffset(op string, args []string, idx int) (int64, error) {
	n, err := strconv.ParseUint(args[idx], 0, 64)
	if err != nil {
		return 0, fwerr.New(op, fwerr.CodeValidation, "block_offset must be a non-negative integer")
	}
	return int64(n), nil
}

// openVolume returns the cached volume handle for offBlocks, opening and
// caching it on first touch (spec §3's FAT volume handle: opened lazily,
// shared between actions on the same offset during a single run).
func openVolume(ctx *Context, op string, offBlocks int64) (*fat.Volume, error) {
	if vol, ok := ctx.fatVolumes[offBlocks]; ok {
		return vol, nil
	}
	vol, err := fat.Open(ctx.Cache, offBlocks)
	if err != nil {
		return nil, fwerr.Wrap(op, fwerr.CodeFormat, err)
	}
	cacheVolume(ctx, offBlocks, vol)
	return vol, nil
}

func cacheVolume(ctx *Context, offBlocks int64, vol *fat.Volume) {
	if ctx.fatVolumes == nil {
		ctx.fatVolumes = make(map[int64]*fat.Volume)
	}
	ctx.fatVolumes[offBlocks] = vol
}

// fat_mkfs formats a FAT16 filesystem at block_offset spanning block_count
// blocks.
func fatMkfsValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 2 && len(args) != 3 {
		return fwerr.New("fat_mkfs", fwerr.CodeValidation, "expected block_offset, block_count[, label]")
	}
	if _, err := parseBlockOffset("fat_mkfs", args, 0); err != nil {
		return err
	}
	count, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil {
		return fwerr.New("fat_mkfs", fwerr.CodeValidation, "block_count must be a non-negative integer")
	}
	return validateBlockCount("fat_mkfs", count)
}

func fatMkfsRun(ctx *Context, args []string, variant bool) error {
	off, _ := parseBlockOffset("fat_mkfs", args, 0)
	count, _ := strconv.ParseUint(args[1], 0, 64)
	label := ""
	if len(args) == 3 {
		label = args[2]
	}
	vol, err := fat.Mkfs(ctx.Cache, off, int64(count), label)
	if err != nil {
		return fwerr.Wrap("fat_mkfs", fwerr.CodeIO, err)
	}
	// Replace any handle opened against the pre-format contents.
	cacheVolume(ctx, off, vol)
	ctx.Progress.Add(1)
	return nil
}

// fat_attrib sets/clears DOS attribute bits on an existing path.
func fatAttribValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 3 {
		return fwerr.New("fat_attrib", fwerr.CodeValidation, "expected block_offset, path, attrs")
	}
	if _, err := parseBlockOffset("fat_attrib", args, 0); err != nil {
		return err
	}
	if _, _, err := fat.ParseAttrs(args[2]); err != nil {
		return fwerr.Wrap("fat_attrib", fwerr.CodeValidation, err)
	}
	return nil
}

func fatAttribRun(ctx *Context, args []string, variant bool) error {
	off, _ := parseBlockOffset("fat_attrib", args, 0)
	vol, err := openVolume(ctx, "fat_attrib", off)
	if err != nil {
		return err
	}
	if err := vol.Attrib(args[1], args[2]); err != nil {
		return fwerr.Wrap("fat_attrib", fwerr.CodeIO, err)
	}
	ctx.Progress.Add(1)
	return nil
}

// fat_write is FILE-only: it streams the active resource into dest_path,
// truncating any existing file there first. A zero-length resource still
// creates an empty file and counts as one progress unit.
func fatWriteValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 2 {
		return fwerr.New("fat_write", fwerr.CodeValidation, "expected block_offset, dest_path")
	}
	if _, err := parseBlockOffset("fat_write", args, 0); err != nil {
		return err
	}
	return nil
}

func fatWriteComputeProgress(ctx *Context, args []string, variant bool) (uint64, error) {
	if ctx.Resource == nil {
		return 0, fwerr.New("fat_write", fwerr.CodeResource, "no active resource")
	}
	if ctx.Resource.DataSize == 0 {
		return 1, nil
	}
	return uint64(ctx.Resource.DataSize), nil
}

func fatWriteRun(ctx *Context, args []string, variant bool) error {
	off, _ := parseBlockOffset("fat_write", args, 0)
	res := ctx.Resource
	if res == nil {
		return fwerr.New("fat_write", fwerr.CodeResource, "no active resource")
	}
	if res.Consumed {
		return fwerr.NewResource("fat_write", res.Name, fwerr.CodeResource, "resource already consumed by an earlier FILE action")
	}
	if err := hashverify.ValidateHex(res.ExpectedHash); err != nil {
		return fwerr.Wrap("fat_write", fwerr.CodeConfig, err)
	}
	res.Consumed = true

	vol, err := openVolume(ctx, "fat_write", off)
	if err != nil {
		return err
	}
	fw, err := vol.CreateFile(args[1])
	if err != nil {
		return fwerr.Wrap("fat_write", fwerr.CodeIO, err)
	}

	v := hashverify.New(fw)
	var pos int64
	for {
		buf, destOffset, err := res.Stream.Next()
		if err != nil {
			fw.Close()
			return fwerr.Wrap("fat_write", fwerr.CodeResource, err)
		}
		if len(buf) == 0 {
			break
		}
		if destOffset > pos {
			// A hole before this chunk: pad the cluster chain with zero
			// bytes so the file's content lines up with the resource's
			// hole-inclusive address space, the same way raw_write's
			// destOffset placement does on a real block device.
			if err := fatZeroFill(fw, destOffset-pos); err != nil {
				fw.Close()
				return fwerr.Wrap("fat_write", fwerr.CodeIO, err)
			}
			pos = destOffset
		}
		if _, err := v.Write(buf); err != nil {
			fw.Close()
			return fwerr.Wrap("fat_write", fwerr.CodeIO, err)
		}
		pos += int64(len(buf))
		ctx.Progress.Add(uint64(len(buf)))
	}
	// A trailing hole never yields a stream chunk; grow the cluster chain
	// with zero bytes out to the resource's full sparse length (spec §4.2
	// fat_write "trailing holes grow the file").
	if res.TotalSize > pos {
		if err := fatZeroFill(fw, res.TotalSize-pos); err != nil {
			fw.Close()
			return fwerr.Wrap("fat_write", fwerr.CodeIO, err)
		}
	}
	if err := fw.Close(); err != nil {
		return fwerr.Wrap("fat_write", fwerr.CodeIO, err)
	}
	if err := v.Verify(res.ExpectedHash); err != nil {
		return fwerr.NewResource("fat_write", res.Name, fwerr.CodeResource, err.Error())
	}
	if res.DataSize == 0 {
		ctx.Progress.Add(1)
	}
	return nil
}

// fatZeroFill writes n zero bytes straight to fw, bypassing the hash
// verifier: hole bytes are never part of a resource's declared digest, only
// its data runs are (spec §4.2 hash discipline).
func fatZeroFill(fw *fat.FileWriter, n int64) error {
	const chunk = 64 * 1024
	buf := make([]byte, chunk)
	for n > 0 {
		c := int64(len(buf))
		if c > n {
			c = n
		}
		if _, err := fw.Write(buf[:c]); err != nil {
			return err
		}
		n -= c
	}
	return nil
}

// fat_mv[!] renames old_path to new_path. The plain form requires old_path
// to exist and new_path not to; the ! variant forces an overwrite.
func fatMvValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 3 {
		return fwerr.New("fat_mv", fwerr.CodeValidation, "expected block_offset, old_path, new_path")
	}
	if _, err := parseBlockOffset("fat_mv", args, 0); err != nil {
		return err
	}
	return nil
}

func fatMvRun(ctx *Context, args []string, variant bool) error {
	off, _ := parseBlockOffset("fat_mv", args, 0)
	vol, err := openVolume(ctx, "fat_mv", off)
	if err != nil {
		return err
	}
	if err := vol.Mv(args[1], args[2], variant); err != nil {
		return fwerr.Wrap("fat_mv", fwerr.CodeIO, err)
	}
	ctx.Progress.Add(1)
	return nil
}

// fat_rm[!] removes path. The plain form tolerates a missing path; the !
// variant requires it to exist.
func fatRmValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 2 {
		return fwerr.New("fat_rm", fwerr.CodeValidation, "expected block_offset, path")
	}
	if _, err := parseBlockOffset("fat_rm", args, 0); err != nil {
		return err
	}
	return nil
}

func fatRmRun(ctx *Context, args []string, variant bool) error {
	off, _ := parseBlockOffset("fat_rm", args, 0)
	vol, err := openVolume(ctx, "fat_rm", off)
	if err != nil {
		return err
	}
	if err := vol.Rm(args[1], variant); err != nil {
		return fwerr.Wrap("fat_rm", fwerr.CodeIO, err)
	}
	ctx.Progress.Add(1)
	return nil
}

// fat_cp copies from_path to to_path within the same volume.
func fatCpValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 3 {
		return fwerr.New("fat_cp", fwerr.CodeValidation, "expected block_offset, from_path, to_path")
	}
	if _, err := parseBlockOffset("fat_cp", args, 0); err != nil {
		return err
	}
	return nil
}

func fatCpRun(ctx *Context, args []string, variant bool) error {
	off, _ := parseBlockOffset("fat_cp", args, 0)
	vol, err := openVolume(ctx, "fat_cp", off)
	if err != nil {
		return err
	}
	if err := vol.Cp(args[1], args[2]); err != nil {
		return fwerr.Wrap("fat_cp", fwerr.CodeIO, err)
	}
	ctx.Progress.Add(1)
	return nil
}

// fat_mkdir creates a directory; its parent directory must already exist.
func fatMkdirValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 2 {
		return fwerr.New("fat_mkdir", fwerr.CodeValidation, "expected block_offset, path")
	}
	if _, err := parseBlockOffset("fat_mkdir", args, 0); err != nil {
		return err
	}
	return nil
}

func fatMkdirRun(ctx *Context, args []string, variant bool) error {
	off, _ := parseBlockOffset("fat_mkdir", args, 0)
	vol, err := openVolume(ctx, "fat_mkdir", off)
	if err != nil {
		return err
	}
	if err := vol.Mkdir(args[1]); err != nil {
		return fwerr.Wrap("fat_mkdir", fwerr.CodeIO, err)
	}
	ctx.Progress.Add(1)
	return nil
}

// fat_setlabel rewrites the volume label in both the boot sector and the
// root directory's volume-ID entry.
func fatSetlabelValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 2 {
		return fwerr.New("fat_setlabel", fwerr.CodeValidation, "expected block_offset, label")
	}
	if _, err := parseBlockOffset("fat_setlabel", args, 0); err != nil {
		return err
	}
	return nil
}

func fatSetlabelRun(ctx *Context, args []string, variant bool) error {
	off, _ := parseBlockOffset("fat_setlabel", args, 0)
	vol, err := openVolume(ctx, "fat_setlabel", off)
	if err != nil {
		return err
	}
	if err := vol.SetLabel(args[1]); err != nil {
		return fwerr.Wrap("fat_setlabel", fwerr.CodeIO, err)
	}
	ctx.Progress.Add(1)
	return nil
}

// fat_touch creates path if it does not already exist; it is a no-op
// against an existing file.
func fatTouchValidate(ctx *Context, args []string, variant bool) error {
	if len(args) != 2 {
		return fwerr.New("fat_touch", fwerr.CodeValidation, "expected block_offset, path")
	}
	if _, err := parseBlockOffset("fat_touch", args, 0); err != nil {
		return err
	}
	return nil
}

func fatTouchRun(ctx *Context, args []string, variant bool) error {
	off, _ := parseBlockOffset("fat_touch", args, 0)
	vol, err := openVolume(ctx, "fat_touch", off)
	if err != nil {
		return err
	}
	if err := vol.Touch(args[1]); err != nil {
		return fwerr.Wrap("fat_touch", fwerr.CodeIO, err)
	}
	ctx.Progress.Add(1)
	return nil
}
