package fwup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fwup-go/fwup/internal/block"
	"github.com/fwup-go/fwup/internal/blocksink"
	"github.com/fwup-go/fwup/internal/config"
)

type noopDiag struct{}

func (noopDiag) Info(string) {}
func (noopDiag) Output(p []byte) error {
	return nil
}

func buildStore(t *testing.T, hostPath string) *config.Store {
	t.Helper()
	store := config.New()
	store.SetFileResource("rootfs.img", config.FileResource{HostPath: hostPath})
	require.NoError(t, store.SetTaskOnResource("complete", "rootfs.img", config.FunList{"2", "raw_write", "0"}))
	return store
}

func TestCreateApplyVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	content := "firmware payload for the round trip test"
	hostPath := filepath.Join(dir, "rootfs.img")
	require.NoError(t, os.WriteFile(hostPath, []byte(content), 0o644))

	store := buildStore(t, hostPath)

	var archiveBuf bytes.Buffer
	require.NoError(t, Create(store, &archiveBuf))
	archiveBytes := archiveBuf.Bytes()
	ra := bytes.NewReader(archiveBytes)

	names, err := List(ra, int64(len(archiveBytes)))
	require.NoError(t, err)
	require.Equal(t, []string{"fwup.conf", "rootfs.img"}, names)

	manifest, err := Metadata(ra, int64(len(archiveBytes)))
	require.NoError(t, err)
	require.Contains(t, manifest, "rootfs.img")

	sink := blocksink.NewMemory(int64(block.Size) * 8)
	reporter, err := Apply(ra, int64(len(archiveBytes)), sink, store, "complete", noopDiag{}, false)
	require.NoError(t, err)
	require.Equal(t, reporter.Total(), reporter.Reported())
	written := sink.Bytes()[:len(content)]
	require.Equal(t, content, string(written))

	_, err = Verify(ra, int64(len(archiveBytes)), store, "complete", noopDiag{})
	require.NoError(t, err)
}

func TestVerifyRejectsUnsafeActionsEvenIfTaskRequestsThem(t *testing.T) {
	dir := t.TempDir()
	hostPath := filepath.Join(dir, "rootfs.img")
	require.NoError(t, os.WriteFile(hostPath, []byte("data"), 0o644))

	store := config.New()
	require.NoError(t, store.SetTaskOnInit("complete", config.FunList{"2", "execute", "touch /tmp/fwup-verify-should-not-run"}))

	var archiveBuf bytes.Buffer
	require.NoError(t, Create(store, &archiveBuf))
	archiveBytes := archiveBuf.Bytes()
	ra := bytes.NewReader(archiveBytes)

	_, err := Verify(ra, int64(len(archiveBytes)), store, "complete", noopDiag{})
	require.Error(t, err)
	require.True(t, IsCode(err, CodeSafety))
}
