package action

import (
	"encoding/hex"
	"io"
	"testing"

	"github.com/minio/blake2b-simd"
	"github.com/stretchr/testify/require"

	"github.com/fwup-go/fwup/internal/block"
	"github.com/fwup-go/fwup/internal/blocksink"
	"github.com/fwup-go/fwup/internal/config"
	"github.com/fwup-go/fwup/internal/fat"
	"github.com/fwup-go/fwup/internal/fwerr"
	"github.com/fwup-go/fwup/internal/sparse"
)

type fakeDiag struct {
	infos  []string
	output []byte
}

func (d *fakeDiag) Info(message string) { d.infos = append(d.infos, message) }
func (d *fakeDiag) Output(p []byte) error {
	d.output = append(d.output, p...)
	return nil
}

type fakeProgress struct {
	total uint64
}

func (p *fakeProgress) Add(units uint64) { p.total += units }

func hashHex(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newTestContext(t *testing.T, sinkSize int64) (*Context, *block.Cache) {
	t.Helper()
	sink := blocksink.NewMemory(sinkSize)
	cache := block.NewCache(sink, 0)
	return &Context{
		Cache:    cache,
		Config:   config.New(),
		Diag:     &fakeDiag{},
		Progress: &fakeProgress{},
	}, cache
}

func withResource(ctx *Context, name, content string, holes []int64) {
	runs := append([]int64{int64(len(content))}, holes...)
	m, _ := sparse.New(runs)
	ctx.Resource = &Resource{
		Name:         name,
		ExpectedHash: hashHex([]byte(content)),
		DataSize:     int64(len(content)),
		TotalSize:    m.TotalSize(),
		Stream:       sparse.NewResourceStream(stringsReader(content), m),
	}
}

type stringsReaderT struct {
	data string
	pos  int
}

func stringsReader(s string) *stringsReaderT { return &stringsReaderT{data: s} }

func (r *stringsReaderT) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func TestRawWriteStreamsAndVerifiesHash(t *testing.T) {
	ctx, cache := newTestContext(t, 64*block.Size)
	withResource(ctx, "rootfs.img", "hello world", nil)

	err := RunList(ctx, []string{"2", "raw_write", "1"})
	require.NoError(t, err)

	buf := make([]byte, len("hello world"))
	require.NoError(t, cache.Pread(buf, block.Size))
	require.Equal(t, "hello world", string(buf))
	require.True(t, ctx.Resource.Consumed)
}

func TestRawWriteFailsOnHashMismatch(t *testing.T) {
	ctx, _ := newTestContext(t, 64*block.Size)
	withResource(ctx, "rootfs.img", "hello world", nil)
	ctx.Resource.ExpectedHash = hashHex([]byte("not the right content"))

	err := RunList(ctx, []string{"2", "raw_write", "0"})
	require.Error(t, err)
	var fe *fwerr.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, fwerr.CodeResource, fe.Code)
}

func TestRawWriteRejectsDoubleConsumption(t *testing.T) {
	ctx, _ := newTestContext(t, 64*block.Size)
	withResource(ctx, "rootfs.img", "hello world", nil)
	ctx.Resource.Consumed = true

	err := RunList(ctx, []string{"2", "raw_write", "0"})
	require.Error(t, err)
	require.True(t, fwerr.Is(err, fwerr.CodeResource))
}

func TestRawWriteZeroLengthResourceCountsOneUnit(t *testing.T) {
	ctx, _ := newTestContext(t, 8*block.Size)
	withResource(ctx, "empty.bin", "", nil)

	units, err := ComputeProgressList(ctx, []string{"2", "raw_write", "0"})
	require.NoError(t, err)
	require.EqualValues(t, 1, units)
}

func TestRawWriteExtendsDeviceAcrossTrailingHole(t *testing.T) {
	ctx, cache := newTestContext(t, block.Size)
	withResource(ctx, "sparse.img", "abc", []int64{block.Size * 3})

	err := RunList(ctx, []string{"2", "raw_write", "0"})
	require.NoError(t, err)
	require.NoError(t, cache.Flush())
	require.GreaterOrEqual(t, cache.Size(), int64(3+block.Size*3))
}

func TestRawMemsetWritesFixedByteAcrossBlocks(t *testing.T) {
	ctx, cache := newTestContext(t, 8*block.Size)

	err := RunList(ctx, []string{"4", "raw_memset", "1", "2", "0xAB"})
	require.NoError(t, err)

	buf := make([]byte, 2*block.Size)
	require.NoError(t, cache.Pread(buf, block.Size))
	for _, b := range buf {
		require.EqualValues(t, 0xAB, b)
	}
}

func TestTrimComputesUnitsPerTrimUnitSize(t *testing.T) {
	ctx, _ := newTestContext(t, 1024*block.Size)
	// 256 blocks * 512 = 128 KiB exactly -> 1 unit.
	units, err := ComputeProgressList(ctx, []string{"3", "trim", "0", "256"})
	require.NoError(t, err)
	require.EqualValues(t, 1, units)
}

func TestTrimRunClearsCache(t *testing.T) {
	ctx, cache := newTestContext(t, 1024*block.Size)
	require.NoError(t, cache.Pwrite([]byte{1, 2, 3}, 0, false))

	err := RunList(ctx, []string{"3", "trim", "0", "1"})
	require.NoError(t, err)

	buf := make([]byte, 3)
	require.NoError(t, cache.Pread(buf, 0))
	require.Equal(t, []byte{0, 0, 0}, buf)
}

func TestMBRWriteRendersConfiguredPartitions(t *testing.T) {
	ctx, cache := newTestContext(t, 4*block.Size)
	ctx.Config.SetMBR("primary", config.MBRConfig{
		Partitions: [4]config.MBRPartition{
			{BlockOffset: 1, BlockCount: 2, Type: 0x83, Boot: true},
		},
	})

	err := RunList(ctx, []string{"2", "mbr_write", "primary"})
	require.NoError(t, err)

	buf := make([]byte, 512)
	require.NoError(t, cache.Pread(buf, 0))
	require.EqualValues(t, 0x55, buf[510])
	require.EqualValues(t, 0xAA, buf[511])
}

func TestFatWriteRoundTrip(t *testing.T) {
	ctx, _ := newTestContext(t, 600*block.Size)
	err := RunList(ctx, []string{"3", "fat_mkfs", "0", "600"})
	require.NoError(t, err)

	withResource(ctx, "TEST.TXT", "firmware payload", nil)
	err = RunList(ctx, []string{"3", "fat_write", "0", "TEST.TXT"})
	require.NoError(t, err)
	require.True(t, ctx.Resource.Consumed)
}

func TestFatWriteExtendsFileAcrossTrailingHole(t *testing.T) {
	ctx, _ := newTestContext(t, 600*block.Size)
	require.NoError(t, RunList(ctx, []string{"3", "fat_mkfs", "0", "600"}))

	withResource(ctx, "HOLE.BIN", "abc", []int64{4096})
	require.NoError(t, RunList(ctx, []string{"3", "fat_write", "0", "HOLE.BIN"}))
	require.True(t, ctx.Resource.Consumed)

	vol, err := fat.Open(ctx.Cache, 0)
	require.NoError(t, err)
	data, err := vol.ReadFile("HOLE.BIN")
	require.NoError(t, err)
	require.Len(t, data, 3+4096)
	require.Equal(t, "abc", string(data[:3]))
	for _, b := range data[3:] {
		require.EqualValues(t, 0, b)
	}
}

func TestFatMkdirMvRmLifecycle(t *testing.T) {
	ctx, _ := newTestContext(t, 600*block.Size)
	require.NoError(t, RunList(ctx, []string{"3", "fat_mkfs", "0", "600"}))
	require.NoError(t, RunList(ctx, []string{"3", "fat_mkdir", "0", "SUBDIR"}))
	require.NoError(t, RunList(ctx, []string{"3", "fat_touch", "0", "A.TXT"}))
	require.NoError(t, RunList(ctx, []string{"4", "fat_mv", "0", "A.TXT", "B.TXT"}))
	require.NoError(t, RunList(ctx, []string{"3", "fat_rm!", "0", "B.TXT"}))

	err := RunList(ctx, []string{"3", "fat_rm!", "0", "B.TXT"})
	require.Error(t, err)
}

func TestUbootSetenvAndRecoverRoundTrip(t *testing.T) {
	ctx, _ := newTestContext(t, 4*block.Size)
	ctx.Config.SetUbootEnvironment("primary", config.UbootEnvironment{BlockOffset: 0, BlockCount: 2})

	require.NoError(t, RunList(ctx, []string{"4", "raw_memset", "0", "2", "0xFF"}))
	require.NoError(t, RunList(ctx, []string{"2", "uboot_recover", "primary"}))
	require.NoError(t, RunList(ctx, []string{"4", "uboot_setenv", "primary", "board", "rpi4"}))
	require.NoError(t, RunList(ctx, []string{"3", "uboot_unsetenv", "primary", "board"}))
}

func TestErrorActionAbortsWithUserAbortCode(t *testing.T) {
	ctx, _ := newTestContext(t, block.Size)
	err := RunList(ctx, []string{"2", "error", "stop now"})
	require.Error(t, err)
	require.True(t, fwerr.Is(err, fwerr.CodeUserAbort))
}

func TestInfoActionEmitsOnDiagnosticChannel(t *testing.T) {
	ctx, _ := newTestContext(t, block.Size)
	diag := ctx.Diag.(*fakeDiag)
	require.NoError(t, RunList(ctx, []string{"2", "info", "hello"}))
	require.Equal(t, []string{"hello"}, diag.infos)
}

func TestUnsafeActionsRejectedWithoutUnsafeMode(t *testing.T) {
	ctx, _ := newTestContext(t, block.Size)
	err := RunList(ctx, []string{"2", "execute", "true"})
	require.Error(t, err)
	require.True(t, fwerr.Is(err, fwerr.CodeSafety))
}

func TestRunListValidatesArgumentShapeBeforeRunning(t *testing.T) {
	ctx, cache := newTestContext(t, 8*block.Size)

	// raw_memset with a missing operand: validation must reject it before
	// the run phase ever indexes argv.
	err := RunList(ctx, []string{"3", "raw_memset", "0", "1"})
	require.Error(t, err)
	require.True(t, fwerr.Is(err, fwerr.CodeValidation))

	// Nothing may have been written.
	require.NoError(t, cache.Flush())
	buf := make([]byte, block.Size)
	require.NoError(t, cache.Pread(buf, 0))
	require.Equal(t, make([]byte, block.Size), buf)
}

func TestComputeProgressListRejectsOutOfRangeBlockCount(t *testing.T) {
	ctx, _ := newTestContext(t, 8*block.Size)

	// 4294967295 blocks * 512 overflows INT32_MAX.
	_, err := ComputeProgressList(ctx, []string{"4", "raw_memset", "0", "4294967295", "0"})
	require.Error(t, err)
	require.True(t, fwerr.Is(err, fwerr.CodeValidation))
}

func TestExecuteContributesNoProgressUnits(t *testing.T) {
	ctx, _ := newTestContext(t, block.Size)
	ctx.UnsafeMode = true

	units, err := ComputeProgressList(ctx, []string{"2", "execute", "true"})
	require.NoError(t, err)
	require.EqualValues(t, 0, units)

	require.NoError(t, RunList(ctx, []string{"2", "execute", "true"}))
	require.EqualValues(t, 0, ctx.Progress.(*fakeProgress).total)
}

func TestParseFunListRejectsOutOfRangeArgc(t *testing.T) {
	_, err := ParseFunList([]string{"99", "info", "x"})
	require.Error(t, err)
}

func TestParseFunListRecoversVariantBit(t *testing.T) {
	invs, err := ParseFunList([]string{"3", "fat_rm!", "0", "A.TXT"})
	require.NoError(t, err)
	require.Len(t, invs, 1)
	require.Equal(t, "fat_rm", invs[0].Name)
	require.True(t, invs[0].Variant)
}
