package mbr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderParseRoundTrip(t *testing.T) {
	img := &Image{
		DiskSignature: 0xDEADBEEF,
		Partitions: [maxPartitions]Partition{
			{Boot: true, Type: 0x83, BlockOffset: 2048, BlockCount: 204800},
			{Type: 0x0c, BlockOffset: 206848, BlockCount: 1048576},
		},
	}

	raw, err := img.Render()
	require.NoError(t, err)
	require.Equal(t, byte(0x55), raw[Size-2])
	require.Equal(t, byte(0xAA), raw[Size-1])

	got, err := Parse(raw[:])
	require.NoError(t, err)
	require.Equal(t, img.DiskSignature, got.DiskSignature)
	require.Equal(t, img.Partitions[0], got.Partitions[0])
	require.Equal(t, img.Partitions[1], got.Partitions[1])
	require.Equal(t, Partition{}, got.Partitions[2])
}

func TestParseRejectsMissingBootSignature(t *testing.T) {
	var raw [Size]byte
	_, err := Parse(raw[:])
	require.Error(t, err)
}

func TestParseRejectsWrongLength(t *testing.T) {
	_, err := Parse(make([]byte, 100))
	require.Error(t, err)
}

func TestBootFlagRoundTrips(t *testing.T) {
	img := &Image{Partitions: [maxPartitions]Partition{{Boot: true, Type: 0x0b, BlockOffset: 1, BlockCount: 1}}}
	raw, err := img.Render()
	require.NoError(t, err)

	got, err := Parse(raw[:])
	require.NoError(t, err)
	require.True(t, got.Partitions[0].Boot)
}

func TestCHSOverflowUsesSentinelForLargeOffsets(t *testing.T) {
	rec := Partition{Type: 0x83, BlockOffset: 1 << 24, BlockCount: 1}.toRecord()
	require.Equal(t, [3]byte{chsOverflowHead, chsOverflowSector, chsOverflowCyl}, rec.CHSFirst)
}
