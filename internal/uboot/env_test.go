package uboot

import (
	"testing"

	"github.com/fwup-go/fwup/internal/block"
	"github.com/fwup-go/fwup/internal/blocksink"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	buf := make([]byte, 512)
	want := map[string]string{"bootdelay": "2", "var1": "2000"}
	require.NoError(t, Write(buf, want))

	got, err := Read(buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestWriteSortsVariablesAndPadsWithFF(t *testing.T) {
	buf := make([]byte, 32)
	require.NoError(t, Write(buf, map[string]string{"var1": "2000"}))

	require.Equal(t, []byte("var1=2000\x00\x00"), buf[crcSize:crcSize+len("var1=2000\x00\x00")])
	for _, b := range buf[crcSize+len("var1=2000\x00\x00"):] {
		require.Equal(t, byte(0xFF), b)
	}
}

func TestReadDetectsCRCMismatch(t *testing.T) {
	buf := make([]byte, 512)
	require.NoError(t, Write(buf, map[string]string{"a": "1"}))
	buf[crcSize] ^= 0xFF // corrupt the serialized table without fixing the CRC

	_, err := Read(buf)
	require.Error(t, err)
	var corrupt *ErrCorrupt
	require.ErrorAs(t, err, &corrupt)
}

func TestRecoverReplacesCorruptEnvironment(t *testing.T) {
	buf := make([]byte, 512)
	for i := range buf {
		buf[i] = 0xFF
	}

	vars, err := Recover(buf)
	require.NoError(t, err)
	require.Empty(t, vars)

	readBack, err := Read(buf)
	require.NoError(t, err)
	require.Empty(t, readBack)
}

func TestRecoverIsNoOpOnValidEnvironment(t *testing.T) {
	buf := make([]byte, 512)
	require.NoError(t, Write(buf, map[string]string{"keep": "me"}))

	vars, err := Recover(buf)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"keep": "me"}, vars)
}

func TestSetVarAndUnsetVarThroughCache(t *testing.T) {
	sink := blocksink.NewMemory(block.Size * 4)
	c := block.NewCache(sink, 0)
	const offset, size = int64(block.Size), int64(block.Size)

	require.NoError(t, ClearEnv(c, offset, size))
	require.NoError(t, SetVar(c, offset, size, "var1", "2000"))

	vars, err := ReadAt(c, offset, size)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"var1": "2000"}, vars)

	require.NoError(t, UnsetVar(c, offset, size, "var1"))
	vars, err = ReadAt(c, offset, size)
	require.NoError(t, err)
	require.Empty(t, vars)
}

func TestRecoverAtFixesCorruptBlockInCache(t *testing.T) {
	sink := blocksink.NewMemory(block.Size * 2)
	c := block.NewCache(sink, 0)
	const offset, size = int64(0), int64(block.Size)

	raw := make([]byte, size)
	for i := range raw {
		raw[i] = 0xFF
	}
	require.NoError(t, c.Pwrite(raw, offset, false))

	vars, err := RecoverAt(c, offset, size)
	require.NoError(t, err)
	require.Empty(t, vars)

	vars, err = ReadAt(c, offset, size)
	require.NoError(t, err)
	require.Empty(t, vars)
}
