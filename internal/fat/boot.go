// Package fat is the thin FAT16 façade every fat_* action writes through
// (spec §4.7): open-on-demand, addresses expressed purely as a block
// offset within the output device, every byte transfer going through the
// block cache so the filesystem never sees a bare file handle.
package fat

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
)

var defaultEncoding = binary.LittleEndian

const (
	bootSectorSize = 512
	bpbSize        = 62
	dirEntrySize   = 32

	mediaFixedDisk = 0xF8
	bootSignature  = 0x29

	clusterFree     = 0x0000
	clusterReserved = 0x0001
	clusterBad      = 0xFFF7
	clusterEOCMin   = 0xFFF8
	clusterEOC      = 0xFFFF
)

// bootSectorRecord is the on-disk BIOS parameter block fat_mkfs renders and
// Open parses, laid out the way dsoprea-go-exfat packs its boot sector
// header: a restruct target mixing fixed byte arrays and little-endian
// integers with no host struct padding.
type bootSectorRecord struct {
	JumpBoot            [3]byte
	OEMName             [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   byte
	ReservedSectorCount uint16
	NumFATs             byte
	RootEntryCount      uint16
	TotalSectors16      uint16
	MediaType           byte
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumHeads            uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	DriveNumber         byte
	Reserved1           byte
	BootSignature       byte
	VolumeID            uint32
	VolumeLabel         [11]byte
	FileSystemType      [8]byte
}

func renderBootSector(r bootSectorRecord) ([bootSectorSize]byte, error) {
	var out [bootSectorSize]byte
	raw, err := restruct.Pack(defaultEncoding, &r)
	if err != nil {
		return out, fmt.Errorf("fat: pack boot sector: %w", err)
	}
	if len(raw) != bpbSize {
		return out, fmt.Errorf("fat: boot sector packed to %d bytes, want %d", len(raw), bpbSize)
	}
	copy(out[:], raw)
	out[bootSectorSize-2] = 0x55
	out[bootSectorSize-1] = 0xAA
	return out, nil
}

func parseBootSector(buf []byte) (bootSectorRecord, error) {
	var r bootSectorRecord
	if len(buf) != bootSectorSize {
		return r, fmt.Errorf("fat: boot sector must be %d bytes, got %d", bootSectorSize, len(buf))
	}
	if buf[bootSectorSize-2] != 0x55 || buf[bootSectorSize-1] != 0xAA {
		return r, fmt.Errorf("fat: missing 0x55AA boot signature")
	}
	if err := restruct.Unpack(buf[:bpbSize], defaultEncoding, &r); err != nil {
		return r, fmt.Errorf("fat: unpack boot sector: %w", err)
	}
	return r, nil
}
