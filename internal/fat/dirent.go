package fat

import (
	"fmt"
	"strings"

	"github.com/go-restruct/restruct"
)

// Attr is a FAT directory entry attribute byte.
type Attr byte

const (
	AttrReadOnly  Attr = 0x01
	AttrHidden    Attr = 0x02
	AttrSystem    Attr = 0x04
	AttrVolumeID  Attr = 0x08
	AttrDirectory Attr = 0x10
	AttrArchive   Attr = 0x20
)

const (
	direntFree    = 0x00
	direntDeleted = 0xE5
)

// dirEntryRecord is one 32-byte FAT directory entry: 8.3 name, attributes,
// first cluster, and size. Long filenames are out of scope — fwup never
// needs more than the short-name form to address a fixed, config-driven
// resource path.
type dirEntryRecord struct {
	Name         [8]byte
	Ext          [3]byte
	Attr         byte
	Reserved     [10]byte
	Time         uint16
	Date         uint16
	FirstCluster uint16
	Size         uint32
}

func packDirEntry(r dirEntryRecord) ([dirEntrySize]byte, error) {
	var out [dirEntrySize]byte
	raw, err := restruct.Pack(defaultEncoding, &r)
	if err != nil {
		return out, err
	}
	if len(raw) != dirEntrySize {
		return out, fmt.Errorf("fat: directory entry packed to %d bytes, want %d", len(raw), dirEntrySize)
	}
	copy(out[:], raw)
	return out, nil
}

func unpackDirEntry(buf []byte) (dirEntryRecord, error) {
	var r dirEntryRecord
	if len(buf) != dirEntrySize {
		return r, fmt.Errorf("fat: directory entry must be %d bytes, got %d", dirEntrySize, len(buf))
	}
	err := restruct.Unpack(buf, defaultEncoding, &r)
	return r, err
}

// shortName converts a single path component into its padded 8.3 on-disk
// form. fwup's own resource paths are ASCII and short, so this rejects
// anything that wouldn't round-trip rather than silently truncating.
func shortName(component string) (name [8]byte, ext [3]byte, err error) {
	for i := range name {
		name[i] = ' '
	}
	for i := range ext {
		ext[i] = ' '
	}

	base := component
	extension := ""
	if dot := strings.LastIndexByte(component, '.'); dot >= 0 {
		base, extension = component[:dot], component[dot+1:]
	}
	base = strings.ToUpper(base)
	extension = strings.ToUpper(extension)

	if len(base) == 0 || len(base) > 8 || len(extension) > 3 {
		return name, ext, fmt.Errorf("fat: %q does not fit an 8.3 short name", component)
	}
	copy(name[:], base)
	copy(ext[:], extension)
	return name, ext, nil
}

func nameFromRecord(r dirEntryRecord) string {
	base := strings.TrimRight(string(r.Name[:]), " ")
	extension := strings.TrimRight(string(r.Ext[:]), " ")
	if extension == "" {
		return base
	}
	return base + "." + extension
}
