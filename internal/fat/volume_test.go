package fat

import (
	"bytes"
	"testing"

	"github.com/fwup-go/fwup/internal/block"
	"github.com/fwup-go/fwup/internal/blocksink"
	"github.com/stretchr/testify/require"
)

const testVolumeBlocks = 600

func newTestVolume(t *testing.T) *Volume {
	t.Helper()
	sink := blocksink.NewMemory(testVolumeBlocks * block.Size)
	c := block.NewCache(sink, 0)
	v, err := Mkfs(c, 0, testVolumeBlocks, "TESTLBL")
	require.NoError(t, err)
	return v
}

func TestMkfsThenOpenRoundTrip(t *testing.T) {
	sink := blocksink.NewMemory(testVolumeBlocks * block.Size)
	c := block.NewCache(sink, 0)
	v, err := Mkfs(c, 0, testVolumeBlocks, "TESTLBL")
	require.NoError(t, err)
	require.Greater(t, v.totalClusters, uint32(0))

	reopened, err := Open(c, 0)
	require.NoError(t, err)
	require.Equal(t, v.dataOffset, reopened.dataOffset)
	require.Equal(t, v.fatOffset, reopened.fatOffset)
}

func TestCreateWriteReadFileAcrossClusters(t *testing.T) {
	v := newTestVolume(t)
	content := bytes.Repeat([]byte{0x7A}, 1024) // spans multiple 512-byte clusters

	w, err := v.CreateFile("/TEST")
	require.NoError(t, err)
	n, err := w.Write(content)
	require.NoError(t, err)
	require.Equal(t, len(content), n)
	require.NoError(t, w.Close())

	got, err := v.ReadFile("/TEST")
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestCreateFileTruncatesExistingContent(t *testing.T) {
	v := newTestVolume(t)
	w, err := v.CreateFile("/TEST")
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte{1}, 2000))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w2, err := v.CreateFile("/TEST")
	require.NoError(t, err)
	_, err = w2.Write([]byte("short"))
	require.NoError(t, err)
	require.NoError(t, w2.Close())

	got, err := v.ReadFile("/TEST")
	require.NoError(t, err)
	require.Equal(t, []byte("short"), got)
}

func TestZeroLengthWriteCreatesEmptyFile(t *testing.T) {
	v := newTestVolume(t)
	w, err := v.CreateFile("/EMPTY")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := v.ReadFile("/EMPTY")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMkdirAndNestedFile(t *testing.T) {
	v := newTestVolume(t)
	require.NoError(t, v.Mkdir("/SUBDIR"))

	w, err := v.CreateFile("/SUBDIR/INNER.TXT")
	require.NoError(t, err)
	_, err = w.Write([]byte("nested"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := v.ReadFile("/SUBDIR/INNER.TXT")
	require.NoError(t, err)
	require.Equal(t, []byte("nested"), got)
}

func TestTouchIsNoOpOnExistingFile(t *testing.T) {
	v := newTestVolume(t)
	w, err := v.CreateFile("/TEST")
	require.NoError(t, err)
	_, err = w.Write([]byte("keep me"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, v.Touch("/TEST"))

	got, err := v.ReadFile("/TEST")
	require.NoError(t, err)
	require.Equal(t, []byte("keep me"), got)
}

func TestTouchCreatesMissingFile(t *testing.T) {
	v := newTestVolume(t)
	require.NoError(t, v.Touch("/NEWFILE"))

	got, err := v.ReadFile("/NEWFILE")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRmStrictRequiresExistence(t *testing.T) {
	v := newTestVolume(t)
	require.Error(t, v.Rm("/MISSING", true))
	require.NoError(t, v.Rm("/MISSING", false))
}

func TestRmDeletesExistingFile(t *testing.T) {
	v := newTestVolume(t)
	require.NoError(t, v.Touch("/TEST"))
	require.NoError(t, v.Rm("/TEST", true))

	_, err := v.ReadFile("/TEST")
	require.Error(t, err)
}

func TestMvPlainRequiresSourceAndFailsOnExistingDest(t *testing.T) {
	v := newTestVolume(t)
	require.Error(t, v.Mv("/MISSING", "/DEST", false))

	require.NoError(t, v.Touch("/SRC"))
	require.NoError(t, v.Touch("/DEST"))
	require.Error(t, v.Mv("/SRC", "/DEST", false))
}

func TestMvForceOverwritesDestination(t *testing.T) {
	v := newTestVolume(t)
	w, err := v.CreateFile("/SRC")
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, v.Touch("/DEST"))

	require.NoError(t, v.Mv("/SRC", "/DEST", true))

	got, err := v.ReadFile("/DEST")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)

	_, err = v.ReadFile("/SRC")
	require.Error(t, err)
}

func TestCpCopiesContentLeavingSourceIntact(t *testing.T) {
	v := newTestVolume(t)
	w, err := v.CreateFile("/SRC")
	require.NoError(t, err)
	_, err = w.Write([]byte("clone me"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, v.Cp("/SRC", "/DST"))

	src, err := v.ReadFile("/SRC")
	require.NoError(t, err)
	dst, err := v.ReadFile("/DST")
	require.NoError(t, err)
	require.Equal(t, src, dst)
}

func TestSetLabelUpdatesBootSectorAndRootEntry(t *testing.T) {
	v := newTestVolume(t)
	require.NoError(t, v.SetLabel("NEWLABEL"))

	buf := make([]byte, bootSectorSize)
	require.NoError(t, v.cache.Pread(buf, v.base))
	rec, err := parseBootSector(buf)
	require.NoError(t, err)
	require.Equal(t, "NEWLABEL   ", string(rec.VolumeLabel[:]))
}

func TestAttribRejectsCharsOutsideSHRshr(t *testing.T) {
	v := newTestVolume(t)
	require.NoError(t, v.Touch("/TEST"))
	require.Error(t, v.Attrib("/TEST", "X"))
}

func TestAttribSetsAndClearsBits(t *testing.T) {
	v := newTestVolume(t)
	require.NoError(t, v.Touch("/TEST"))
	require.NoError(t, v.Attrib("/TEST", "RH"))

	dir, name, err := v.resolveFile("/TEST")
	require.NoError(t, err)
	loc, ok, err := v.findEntry(dir, name)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotZero(t, loc.rec.Attr&byte(AttrReadOnly))
	require.NotZero(t, loc.rec.Attr&byte(AttrHidden))

	require.NoError(t, v.Attrib("/TEST", "r"))
	loc, _, err = v.findEntry(dir, name)
	require.NoError(t, err)
	require.Zero(t, loc.rec.Attr&byte(AttrReadOnly))
}
