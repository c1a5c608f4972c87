package fat

import (
	"fmt"
	"strings"
)

// FileWriter streams bytes into a FAT file's cluster chain, allocating
// clusters lazily as the write advances. It implements io.Writer so it can
// sit behind the same hash-verifying writer every other resource target
// does.
type FileWriter struct {
	vol           *Volume
	dirOffset     int64
	nameRec       dirEntryRecord // Name/Ext/Attr carried through to the final patch
	firstCluster  uint16
	curCluster    uint16
	curClusterOff int64
	written       int64
}

// CreateFile truncates path if it exists (freeing its cluster chain) or
// creates a fresh zero-length entry, and returns a writer positioned at
// offset 0. Closing it without any Write calls leaves a valid empty file.
func (v *Volume) CreateFile(path string) (*FileWriter, error) {
	dir, name, err := v.resolveFile(path)
	if err != nil {
		return nil, err
	}
	nameBytes, extBytes, err := shortName(name)
	if err != nil {
		return nil, err
	}

	loc, exists, err := v.findEntry(dir, name)
	if err != nil {
		return nil, err
	}

	var off int64
	if exists {
		if loc.rec.Attr&byte(AttrDirectory) != 0 {
			return nil, fmt.Errorf("fat: %q is a directory", path)
		}
		if loc.rec.FirstCluster != 0 {
			if err := v.freeChain(loc.rec.FirstCluster); err != nil {
				return nil, err
			}
		}
		off = loc.offset
	} else {
		off, err = v.allocSlot(dir)
		if err != nil {
			return nil, err
		}
	}

	rec := dirEntryRecord{Name: nameBytes, Ext: extBytes, Attr: byte(AttrArchive)}
	if err := v.writeDirEntryAt(off, rec); err != nil {
		return nil, err
	}
	return &FileWriter{vol: v, dirOffset: off, nameRec: rec}, nil
}

// Write implements io.Writer.
func (w *FileWriter) Write(p []byte) (int, error) {
	remaining := p
	for len(remaining) > 0 {
		if w.curCluster == 0 {
			c, err := w.vol.allocCluster()
			if err != nil {
				return len(p) - len(remaining), err
			}
			w.firstCluster = c
			w.curCluster = c
			w.curClusterOff = 0
		}

		space := w.vol.clusterSize - w.curClusterOff
		n := int64(len(remaining))
		if n > space {
			n = space
		}
		if err := w.vol.cache.Pwrite(remaining[:n], w.vol.clusterOffset(w.curCluster)+w.curClusterOff, true); err != nil {
			return len(p) - len(remaining), err
		}
		w.curClusterOff += n
		w.written += n
		remaining = remaining[n:]

		if w.curClusterOff == w.vol.clusterSize && len(remaining) > 0 {
			next, err := w.vol.extendChain(w.curCluster)
			if err != nil {
				return len(p) - len(remaining), err
			}
			w.curCluster = next
			w.curClusterOff = 0
		}
	}
	return len(p), nil
}

// Close patches the directory entry with the final cluster chain head and
// byte length.
func (w *FileWriter) Close() error {
	w.nameRec.FirstCluster = w.firstCluster
	w.nameRec.Size = uint32(w.written)
	return w.vol.writeDirEntryAt(w.dirOffset, w.nameRec)
}

// ReadFile returns a file's full contents.
func (v *Volume) ReadFile(path string) ([]byte, error) {
	dir, name, err := v.resolveFile(path)
	if err != nil {
		return nil, err
	}
	loc, ok, err := v.findEntry(dir, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fat: %q not found", path)
	}
	if loc.rec.FirstCluster == 0 {
		return nil, nil
	}
	clusters, err := v.chainClusters(loc.rec.FirstCluster)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, loc.rec.Size)
	for _, c := range clusters {
		chunk := make([]byte, v.clusterSize)
		if err := v.cache.Pread(chunk, v.clusterOffset(c)); err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
	}
	if int64(len(buf)) > int64(loc.rec.Size) {
		buf = buf[:loc.rec.Size]
	}
	return buf, nil
}

// Mkdir creates an empty subdirectory. Its parent must already exist.
func (v *Volume) Mkdir(path string) error {
	dir, name, err := v.resolveFile(path)
	if err != nil {
		return err
	}
	if _, exists, err := v.findEntry(dir, name); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("fat: %q already exists", path)
	}
	nameBytes, extBytes, err := shortName(name)
	if err != nil {
		return err
	}

	cluster, err := v.allocCluster()
	if err != nil {
		return err
	}
	zero := make([]byte, v.clusterSize)
	if err := v.cache.Pwrite(zero, v.clusterOffset(cluster), false); err != nil {
		return err
	}

	off, err := v.allocSlot(dir)
	if err != nil {
		return err
	}
	rec := dirEntryRecord{Name: nameBytes, Ext: extBytes, Attr: byte(AttrDirectory), FirstCluster: cluster}
	return v.writeDirEntryAt(off, rec)
}

// Touch creates an empty file if path doesn't already exist; it is a no-op
// if path exists.
func (v *Volume) Touch(path string) error {
	dir, name, err := v.resolveFile(path)
	if err != nil {
		return err
	}
	if _, exists, err := v.findEntry(dir, name); err != nil {
		return err
	} else if exists {
		return nil
	}
	w, err := v.CreateFile(path)
	if err != nil {
		return err
	}
	return w.Close()
}

// Rm deletes path. strict requires the path to already exist; the
// non-strict form tolerates a missing file.
func (v *Volume) Rm(path string, strict bool) error {
	dir, name, err := v.resolveFile(path)
	if err != nil {
		return err
	}
	loc, exists, err := v.findEntry(dir, name)
	if err != nil {
		return err
	}
	if !exists {
		if strict {
			return fmt.Errorf("fat: %q does not exist", path)
		}
		return nil
	}
	if loc.rec.FirstCluster != 0 {
		if err := v.freeChain(loc.rec.FirstCluster); err != nil {
			return err
		}
	}
	var tombstone dirEntryRecord
	tombstone.Name[0] = direntDeleted
	return v.writeDirEntryAt(loc.offset, tombstone)
}

// Mv renames or moves oldPath to newPath. The plain form requires oldPath
// to exist and newPath to be free; force silently overwrites an existing
// newPath.
func (v *Volume) Mv(oldPath, newPath string, force bool) error {
	oldDir, oldName, err := v.resolveFile(oldPath)
	if err != nil {
		return err
	}
	oldLoc, exists, err := v.findEntry(oldDir, oldName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("fat: %q does not exist", oldPath)
	}

	newDir, newName, err := v.resolveFile(newPath)
	if err != nil {
		return err
	}
	newLoc, destExists, err := v.findEntry(newDir, newName)
	if err != nil {
		return err
	}
	if destExists {
		if !force {
			return fmt.Errorf("fat: %q already exists", newPath)
		}
		if newLoc.rec.FirstCluster != 0 {
			if err := v.freeChain(newLoc.rec.FirstCluster); err != nil {
				return err
			}
		}
	}

	nameBytes, extBytes, err := shortName(newName)
	if err != nil {
		return err
	}
	rec := oldLoc.rec
	rec.Name, rec.Ext = nameBytes, extBytes

	var destOff int64
	if destExists {
		destOff = newLoc.offset
	} else {
		destOff, err = v.allocSlot(newDir)
		if err != nil {
			return err
		}
	}
	if err := v.writeDirEntryAt(destOff, rec); err != nil {
		return err
	}

	var tombstone dirEntryRecord
	tombstone.Name[0] = direntDeleted
	return v.writeDirEntryAt(oldLoc.offset, tombstone)
}

// Cp copies a file's full contents from one path to another.
func (v *Volume) Cp(fromPath, toPath string) error {
	data, err := v.ReadFile(fromPath)
	if err != nil {
		return err
	}
	w, err := v.CreateFile(toPath)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return w.Close()
}

// SetLabel rewrites the volume label in both the boot sector and the root
// directory's volume-ID entry.
func (v *Volume) SetLabel(label string) error {
	buf := make([]byte, bootSectorSize)
	if err := v.cache.Pread(buf, v.base); err != nil {
		return err
	}
	rec, err := parseBootSector(buf)
	if err != nil {
		return err
	}
	var volLabel [11]byte
	for i := range volLabel {
		volLabel[i] = ' '
	}
	copy(volLabel[:], []byte(label))
	rec.VolumeLabel = volLabel

	raw, err := renderBootSector(rec)
	if err != nil {
		return err
	}
	if err := v.cache.Pwrite(raw[:], v.base, false); err != nil {
		return err
	}

	locs, err := v.entries(v.rootSlot())
	if err != nil {
		return err
	}
	for _, loc := range locs {
		if !isFreeEntry(loc.rec) && loc.rec.Attr&byte(AttrVolumeID) != 0 {
			var name [8]byte
			var ext [3]byte
			for i := range name {
				name[i] = ' '
			}
			for i := range ext {
				ext[i] = ' '
			}
			copy(name[:], label)
			if len(label) > 8 {
				copy(ext[:], label[8:])
			}
			return v.writeDirEntryAt(loc.offset, dirEntryRecord{Name: name, Ext: ext, Attr: byte(AttrVolumeID)})
		}
	}
	return v.writeVolumeLabelEntry(label)
}

// validAttrChars is the set fat_attrib accepts; anything else fails
// validation before any side effect happens.
const validAttrChars = "SHRshr"

// ParseAttrs validates an fat_attrib attrs argument and returns the bits to
// set and the bits to clear.
func ParseAttrs(attrs string) (set, clear Attr, err error) {
	for _, c := range attrs {
		switch c {
		case 'S':
			set |= AttrSystem
		case 's':
			clear |= AttrSystem
		case 'H':
			set |= AttrHidden
		case 'h':
			clear |= AttrHidden
		case 'R':
			set |= AttrReadOnly
		case 'r':
			clear |= AttrReadOnly
		default:
			if !strings.ContainsRune(validAttrChars, c) {
				return 0, 0, fmt.Errorf("fat: invalid attribute character %q", c)
			}
		}
	}
	return set, clear, nil
}

// Attrib applies an attrs string (chars in [SHRshr]) to path's system,
// hidden, and read-only bits.
func (v *Volume) Attrib(path, attrs string) error {
	set, clear, err := ParseAttrs(attrs)
	if err != nil {
		return err
	}
	dir, name, err := v.resolveFile(path)
	if err != nil {
		return err
	}
	loc, exists, err := v.findEntry(dir, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("fat: %q does not exist", path)
	}
	rec := loc.rec
	rec.Attr = (rec.Attr | byte(set)) &^ byte(clear)
	return v.writeDirEntryAt(loc.offset, rec)
}
