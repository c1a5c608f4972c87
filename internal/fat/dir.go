package fat

import (
	"fmt"
	"strings"
)

// dirSlot identifies where a directory's entries live: the fixed-size root
// region, or a cluster chain for everything else.
type dirSlot struct {
	root         bool
	rootOffset   int64
	rootCount    uint16
	firstCluster uint16
}

type dirEntryLoc struct {
	offset int64
	rec    dirEntryRecord
}

func (v *Volume) rootSlot() dirSlot {
	return dirSlot{root: true, rootOffset: v.rootDirOffset, rootCount: v.rootDirEntryCount}
}

// entries returns every directory-entry slot (free or occupied) in d, in
// on-disk order.
func (v *Volume) entries(d dirSlot) ([]dirEntryLoc, error) {
	var locs []dirEntryLoc
	if d.root {
		for i := uint16(0); i < d.rootCount; i++ {
			off := d.rootOffset + int64(i)*dirEntrySize
			buf := make([]byte, dirEntrySize)
			if err := v.cache.Pread(buf, off); err != nil {
				return nil, err
			}
			rec, err := unpackDirEntry(buf)
			if err != nil {
				return nil, err
			}
			locs = append(locs, dirEntryLoc{offset: off, rec: rec})
		}
		return locs, nil
	}

	clusters, err := v.chainClusters(d.firstCluster)
	if err != nil {
		return nil, err
	}
	entriesPerCluster := v.clusterSize / dirEntrySize
	for _, c := range clusters {
		base := v.clusterOffset(c)
		for i := int64(0); i < entriesPerCluster; i++ {
			off := base + i*dirEntrySize
			buf := make([]byte, dirEntrySize)
			if err := v.cache.Pread(buf, off); err != nil {
				return nil, err
			}
			rec, err := unpackDirEntry(buf)
			if err != nil {
				return nil, err
			}
			locs = append(locs, dirEntryLoc{offset: off, rec: rec})
		}
	}
	return locs, nil
}

func isFreeEntry(rec dirEntryRecord) bool {
	return rec.Name[0] == direntFree || rec.Name[0] == direntDeleted
}

func (v *Volume) writeDirEntryAt(off int64, rec dirEntryRecord) error {
	raw, err := packDirEntry(rec)
	if err != nil {
		return err
	}
	return v.cache.Pwrite(raw[:], off, false)
}

// findEntry looks up name's short-form match within d.
func (v *Volume) findEntry(d dirSlot, name string) (dirEntryLoc, bool, error) {
	locs, err := v.entries(d)
	if err != nil {
		return dirEntryLoc{}, false, err
	}
	for _, loc := range locs {
		if isFreeEntry(loc.rec) {
			continue
		}
		if strings.EqualFold(nameFromRecord(loc.rec), name) {
			return loc, true, nil
		}
	}
	return dirEntryLoc{}, false, nil
}

// allocSlot returns a free entry offset in d, growing a non-root directory
// by one cluster if every existing entry is occupied.
func (v *Volume) allocSlot(d dirSlot) (int64, error) {
	locs, err := v.entries(d)
	if err != nil {
		return 0, err
	}
	for _, loc := range locs {
		if isFreeEntry(loc.rec) {
			return loc.offset, nil
		}
	}
	if d.root {
		return 0, fmt.Errorf("fat: root directory is full")
	}

	clusters, err := v.chainClusters(d.firstCluster)
	if err != nil {
		return 0, err
	}
	last := clusters[len(clusters)-1]
	next, err := v.extendChain(last)
	if err != nil {
		return 0, err
	}
	zero := make([]byte, v.clusterSize)
	if err := v.cache.Pwrite(zero, v.clusterOffset(next), false); err != nil {
		return 0, err
	}
	return v.clusterOffset(next), nil
}

// resolveDir walks every component of dir (a slash-separated path rooted at
// "/") to the dirSlot of the final directory, creating none of them.
func (v *Volume) resolveDir(dir string) (dirSlot, error) {
	cur := v.rootSlot()
	for _, comp := range splitPath(dir) {
		loc, ok, err := v.findEntry(cur, comp)
		if err != nil {
			return dirSlot{}, err
		}
		if !ok {
			return dirSlot{}, fmt.Errorf("fat: directory %q not found", comp)
		}
		if loc.rec.Attr&byte(AttrDirectory) == 0 {
			return dirSlot{}, fmt.Errorf("fat: %q is not a directory", comp)
		}
		cur = dirSlot{firstCluster: loc.rec.FirstCluster}
	}
	return cur, nil
}

// resolveFile splits a path into its parent dirSlot and leaf file name.
func (v *Volume) resolveFile(path string) (dirSlot, string, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return dirSlot{}, "", fmt.Errorf("fat: empty path")
	}
	dir, err := v.resolveDir(strings.Join(parts[:len(parts)-1], "/"))
	if err != nil {
		return dirSlot{}, "", err
	}
	return dir, parts[len(parts)-1], nil
}

func splitPath(path string) []string {
	var parts []string
	for _, c := range strings.Split(path, "/") {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return parts
}

func (v *Volume) writeVolumeLabelEntry(label string) error {
	slot := v.rootSlot()
	off, err := v.allocSlot(slot)
	if err != nil {
		return err
	}
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
	return v.writeDirEntryAt(off, dirEntryRecord{Name: name, Ext: ext, Attr: byte(AttrVolumeID)})
}
