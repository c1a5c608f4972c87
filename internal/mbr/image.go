// Package mbr renders and parses the 512-byte MBR partition record that
// mbr_write produces (spec §4.2). The on-disk partition entry layout is
// packed with restruct the way dsoprea-go-exfat's boot-sector structures
// are packed and unpacked against a fixed byte order.
package mbr

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
)

var defaultEncoding = binary.LittleEndian

const (
	// Size is the total length of a rendered MBR image.
	Size = 512

	bootstrapSize  = 440
	tableOffset    = 446
	entrySize      = 16
	maxPartitions  = 4
	signatureByte0 = 0x55
	signatureByte1 = 0xAA

	// Sentinel CHS tuple written for any LBA range that doesn't fit the
	// legacy 1024-cylinder/255-head/63-sector addressable space.
	chsOverflowHead   = 0xFE
	chsOverflowSector = 0xFF
	chsOverflowCyl    = 0xFF
	sectorsPerTrack   = 63
	headsPerCylinder  = 255
	maxCHSCylinder    = 1023
)

// Partition is one of an MBR's four primary partition table entries.
type Partition struct {
	Boot        bool
	Type        byte
	BlockOffset uint32
	BlockCount  uint32
}

// Image is the in-memory representation of an MBR sector. Bootstrap code is
// carried opaquely; fwup never generates bootstrap instructions itself, it
// only preserves whatever bytes the caller supplied (or zeroes).
type Image struct {
	Bootstrap     [bootstrapSize]byte
	DiskSignature uint32
	Partitions    [maxPartitions]Partition
}

// partitionRecord is the 16-byte on-disk layout of one partition entry.
type partitionRecord struct {
	Status   byte
	CHSFirst [3]byte
	Type     byte
	CHSLast  [3]byte
	LBAFirst uint32
	LBACount uint32
}

func chsFor(blockOffset uint64) [3]byte {
	cylinder := blockOffset / (uint64(sectorsPerTrack) * uint64(headsPerCylinder))
	if cylinder > maxCHSCylinder {
		return [3]byte{chsOverflowHead, chsOverflowSector, chsOverflowCyl}
	}
	remainder := blockOffset % (uint64(sectorsPerTrack) * uint64(headsPerCylinder))
	head := remainder / sectorsPerTrack
	sector := remainder%sectorsPerTrack + 1
	return [3]byte{
		byte(head),
		byte(sector&0x3f) | byte((cylinder>>8)<<6),
		byte(cylinder & 0xff),
	}
}

func (p Partition) toRecord() partitionRecord {
	if p == (Partition{}) {
		// Unused slot: all 16 bytes stay zero.
		return partitionRecord{}
	}
	status := byte(0x00)
	if p.Boot {
		status = 0x80
	}
	return partitionRecord{
		Status:   status,
		CHSFirst: chsFor(uint64(p.BlockOffset)),
		Type:     p.Type,
		CHSLast:  chsFor(uint64(p.BlockOffset) + uint64(p.BlockCount) - 1),
		LBAFirst: p.BlockOffset,
		LBACount: p.BlockCount,
	}
}

func partitionFromRecord(r partitionRecord) Partition {
	return Partition{
		Boot:        r.Status == 0x80,
		Type:        r.Type,
		BlockOffset: r.LBAFirst,
		BlockCount:  r.LBACount,
	}
}

// Render packs the image into its 512-byte on-disk form.
func (img *Image) Render() ([Size]byte, error) {
	var out [Size]byte
	copy(out[:bootstrapSize], img.Bootstrap[:])
	binary.LittleEndian.PutUint32(out[bootstrapSize:bootstrapSize+4], img.DiskSignature)
	// out[444:446] is the reserved word, left zero.

	for i, p := range img.Partitions {
		rec := p.toRecord()
		raw, err := restruct.Pack(defaultEncoding, &rec)
		if err != nil {
			return out, fmt.Errorf("mbr: pack partition %d: %w", i, err)
		}
		if len(raw) != entrySize {
			return out, fmt.Errorf("mbr: partition %d packed to %d bytes, want %d", i, len(raw), entrySize)
		}
		copy(out[tableOffset+i*entrySize:], raw)
	}

	out[Size-2] = signatureByte0
	out[Size-1] = signatureByte1
	return out, nil
}

// Parse decodes a 512-byte MBR sector. It returns an error if the boot
// signature is missing.
func Parse(buf []byte) (Image, error) {
	var img Image
	if len(buf) != Size {
		return img, fmt.Errorf("mbr: image must be %d bytes, got %d", Size, len(buf))
	}
	if buf[Size-2] != signatureByte0 || buf[Size-1] != signatureByte1 {
		return img, fmt.Errorf("mbr: missing 0x55AA boot signature")
	}

	copy(img.Bootstrap[:], buf[:bootstrapSize])
	img.DiskSignature = binary.LittleEndian.Uint32(buf[bootstrapSize : bootstrapSize+4])

	for i := 0; i < maxPartitions; i++ {
		raw := buf[tableOffset+i*entrySize : tableOffset+(i+1)*entrySize]
		var rec partitionRecord
		if err := restruct.Unpack(raw, defaultEncoding, &rec); err != nil {
			return img, fmt.Errorf("mbr: unpack partition %d: %w", i, err)
		}
		img.Partitions[i] = partitionFromRecord(rec)
	}
	return img, nil
}
