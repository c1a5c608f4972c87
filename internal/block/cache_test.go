package block

import (
	"bytes"
	"testing"

	"github.com/fwup-go/fwup/internal/blocksink"
	"github.com/stretchr/testify/require"
)

func TestPwriteFullBlockThenReadBack(t *testing.T) {
	sink := blocksink.NewMemory(4096)
	c := NewCache(sink, 0)

	block := bytes.Repeat([]byte{0xAB}, Size)
	require.NoError(t, c.Pwrite(block, 512, false))

	got := make([]byte, Size)
	require.NoError(t, c.Pread(got, 512))
	require.Equal(t, block, got)

	require.NoError(t, c.Flush())
	require.Equal(t, block, sink.Bytes()[512:512+Size])
}

func TestPwritePartialBlockIsReadModifyWrite(t *testing.T) {
	sink := blocksink.NewMemory(Size)
	require.NoError(t, sink.Truncate(Size))

	c := NewCache(sink, 0)
	full := bytes.Repeat([]byte{0x11}, Size)
	require.NoError(t, c.Pwrite(full, 0, false))
	require.NoError(t, c.Flush())

	c2 := NewCache(sink, 0)
	patch := []byte{0x22, 0x22, 0x22, 0x22}
	require.NoError(t, c2.Pwrite(patch, 10, false))
	require.NoError(t, c2.Flush())

	got := sink.Bytes()
	require.Equal(t, byte(0x11), got[0])
	require.Equal(t, []byte{0x22, 0x22, 0x22, 0x22}, got[10:14])
	require.Equal(t, byte(0x11), got[14])
}

func TestFlushWritesAscendingOffsetOrder(t *testing.T) {
	sink := blocksink.NewMemory(Size * 4)
	c := NewCache(sink, 0)

	// Write out of order; Flush must still land bytes correctly regardless
	// of insertion order since it sorts by address before write-back.
	require.NoError(t, c.Pwrite(bytes.Repeat([]byte{3}, Size), 3*Size, false))
	require.NoError(t, c.Pwrite(bytes.Repeat([]byte{1}, Size), 1*Size, false))
	require.NoError(t, c.Pwrite(bytes.Repeat([]byte{0}, Size), 0, false))

	require.NoError(t, c.Flush())

	got := sink.Bytes()
	require.Equal(t, byte(0), got[0])
	require.Equal(t, byte(1), got[Size])
	require.Equal(t, byte(3), got[3*Size])
}

func TestStreamedWriteSpillsWhenOverMaxDirty(t *testing.T) {
	sink := blocksink.NewMemory(Size * 8)
	c := NewCache(sink, 2)

	for i := int64(0); i < 5; i++ {
		buf := bytes.Repeat([]byte{byte(i + 1)}, Size)
		require.NoError(t, c.Pwrite(buf, i*Size, true))
	}

	// Spilling should have flushed the first block already, before the
	// final Flush call below.
	require.Equal(t, byte(1), sink.Bytes()[0])

	require.NoError(t, c.Flush())
	for i := int64(0); i < 5; i++ {
		require.Equal(t, byte(i+1), sink.Bytes()[i*Size])
	}
}

func TestTrimClearsCachedEntriesAndForwardsHard(t *testing.T) {
	sink := blocksink.NewMemory(Size * 2)
	c := NewCache(sink, 0)

	require.NoError(t, c.Pwrite(bytes.Repeat([]byte{9}, Size), 0, false))
	require.NoError(t, c.Trim(0, Size, true))
	require.NoError(t, c.Flush())

	// Trim discarded the dirty entry before it could be written back, and
	// forwarded to the sink which zeroes the range.
	got := sink.Bytes()
	for _, b := range got[:Size] {
		require.Equal(t, byte(0), b)
	}
}

func TestPreadFallsBackToSinkForUncachedBlocks(t *testing.T) {
	sink := blocksink.NewMemory(Size)
	require.NoError(t, sink.Truncate(Size))
	_, err := sink.PwriteAt(bytes.Repeat([]byte{7}, Size), 0)
	require.NoError(t, err)

	c := NewCache(sink, 0)
	got := make([]byte, Size)
	require.NoError(t, c.Pread(got, 0))
	require.Equal(t, bytes.Repeat([]byte{7}, Size), got)
}
