package fat

import (
	"fmt"

	"github.com/fwup-go/fwup/internal/block"
	"github.com/fwup-go/fwup/internal/logging"
)

const (
	bytesPerSector    = block.Size
	sectorsPerCluster = 1
	reservedSectors   = 1
	numFATCopies      = 2
	rootEntryCount    = 512 // 512*32 = 16384 bytes = 32 sectors
)

// Volume is a mounted FAT16 region addressed entirely in block offsets
// within the output device — the data region, FAT copies, and root
// directory all sit behind the same block cache every other action writes
// through.
type Volume struct {
	cache *block.Cache

	base              int64 // byte offset of the volume's boot sector
	clusterSize       int64
	numFATs           byte
	fatOffset         int64
	fatBytes          int64 // size of ONE fat copy
	rootDirOffset     int64
	rootDirEntryCount uint16
	dataOffset        int64
	totalClusters     uint32
}

func computeFatSectors(totalSectors uint32, reserved uint16, numFATs byte, rootDirSectors uint32) uint16 {
	fatSectors := uint32(1)
	for i := 0; i < 16; i++ {
		dataSectors := int64(totalSectors) - int64(reserved) - int64(rootDirSectors) - int64(numFATs)*int64(fatSectors)
		if dataSectors < 0 {
			dataSectors = 0
		}
		need := uint32((uint64(dataSectors)*2 + uint64(bytesPerSector) - 1) / uint64(bytesPerSector))
		if need == 0 {
			need = 1
		}
		if need == fatSectors {
			break
		}
		fatSectors = need
	}
	return uint16(fatSectors)
}

// Mkfs formats a fresh FAT16 volume of countBlocks 512-byte blocks at the
// given block offset within the device, through the same block cache the
// action that invoked fat_mkfs is already writing through.
func Mkfs(cache *block.Cache, offBlocks, countBlocks int64, label string) (*Volume, error) {
	base := offBlocks * block.Size
	totalSectors := uint32(countBlocks)
	rootDirSectors := uint32(rootEntryCount*dirEntrySize) / bytesPerSector
	fatSectors := computeFatSectors(totalSectors, reservedSectors, numFATCopies, rootDirSectors)

	dataSectors := int64(totalSectors) - reservedSectors - int64(rootDirSectors) - numFATCopies*int64(fatSectors)
	if dataSectors < 1 {
		return nil, fmt.Errorf("fat: volume of %d blocks is too small to format", countBlocks)
	}

	var volLabel [11]byte
	for i := range volLabel {
		volLabel[i] = ' '
	}
	copy(volLabel[:], []byte(label))

	rec := bootSectorRecord{
		JumpBoot:            [3]byte{0xEB, 0x3C, 0x90},
		OEMName:             [8]byte{'F', 'W', 'U', 'P', ' ', ' ', ' ', ' '},
		BytesPerSector:      bytesPerSector,
		SectorsPerCluster:   sectorsPerCluster,
		ReservedSectorCount: reservedSectors,
		NumFATs:             numFATCopies,
		RootEntryCount:      rootEntryCount,
		TotalSectors16:      uint16(totalSectors),
		MediaType:           mediaFixedDisk,
		FATSize16:           fatSectors,
		SectorsPerTrack:     63,
		NumHeads:            255,
		DriveNumber:         0x80,
		BootSignature:       bootSignature,
		VolumeID:            0,
		VolumeLabel:         volLabel,
		FileSystemType:      [8]byte{'F', 'A', 'T', '1', '6', ' ', ' ', ' '},
	}
	if totalSectors > 0xFFFF {
		rec.TotalSectors16 = 0
		rec.TotalSectors32 = totalSectors
	}

	raw, err := renderBootSector(rec)
	if err != nil {
		return nil, err
	}
	if err := cache.Pwrite(raw[:], base, false); err != nil {
		return nil, err
	}

	v := &Volume{
		cache:             cache,
		base:              base,
		clusterSize:       sectorsPerCluster * bytesPerSector,
		numFATs:           numFATCopies,
		fatOffset:         base + reservedSectors*bytesPerSector,
		fatBytes:          int64(fatSectors) * bytesPerSector,
		rootDirEntryCount: rootEntryCount,
		totalClusters:     uint32(dataSectors),
	}
	v.rootDirOffset = v.fatOffset + int64(v.numFATs)*v.fatBytes
	v.dataOffset = v.rootDirOffset + int64(rootDirSectors)*bytesPerSector

	zero := make([]byte, v.fatBytes*int64(v.numFATs))
	if err := cache.Pwrite(zero, v.fatOffset, false); err != nil {
		return nil, err
	}
	// Reserve clusters 0 and 1 per the FAT16 convention: entry 0 carries the
	// media descriptor in its low byte, entry 1 is marked end-of-chain.
	if err := v.writeFAT(0, 0xFF00|uint16(mediaFixedDisk)); err != nil {
		return nil, err
	}
	if err := v.writeFAT(1, clusterEOC); err != nil {
		return nil, err
	}

	zeroRoot := make([]byte, int64(rootDirSectors)*bytesPerSector)
	if err := cache.Pwrite(zeroRoot, v.rootDirOffset, false); err != nil {
		return nil, err
	}

	if label != "" {
		if err := v.writeVolumeLabelEntry(label); err != nil {
			return nil, err
		}
	}

	logging.Debug("fat volume formatted", "block_offset", offBlocks, "block_count", countBlocks, "label", label)
	return v, nil
}

// Open mounts an existing FAT16 volume at the given block offset by
// parsing its boot sector.
func Open(cache *block.Cache, offBlocks int64) (*Volume, error) {
	base := offBlocks * block.Size
	buf := make([]byte, bootSectorSize)
	if err := cache.Pread(buf, base); err != nil {
		return nil, err
	}
	rec, err := parseBootSector(buf)
	if err != nil {
		return nil, err
	}

	totalSectors := uint32(rec.TotalSectors16)
	if totalSectors == 0 {
		totalSectors = rec.TotalSectors32
	}
	rootDirSectors := (uint32(rec.RootEntryCount)*dirEntrySize + uint32(rec.BytesPerSector) - 1) / uint32(rec.BytesPerSector)

	v := &Volume{
		cache:             cache,
		base:              base,
		clusterSize:       int64(rec.SectorsPerCluster) * int64(rec.BytesPerSector),
		numFATs:           rec.NumFATs,
		fatOffset:         base + int64(rec.ReservedSectorCount)*int64(rec.BytesPerSector),
		fatBytes:          int64(rec.FATSize16) * int64(rec.BytesPerSector),
		rootDirEntryCount: rec.RootEntryCount,
	}
	v.rootDirOffset = v.fatOffset + int64(v.numFATs)*v.fatBytes
	v.dataOffset = v.rootDirOffset + int64(rootDirSectors)*int64(rec.BytesPerSector)

	dataSectors := int64(totalSectors) - int64(rec.ReservedSectorCount) - int64(rootDirSectors) - int64(v.numFATs)*int64(rec.FATSize16)
	if dataSectors < 0 {
		dataSectors = 0
	}
	v.totalClusters = uint32(dataSectors / int64(rec.SectorsPerCluster))

	return v, nil
}
