package create

import (
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/blake2b-simd"
	"github.com/stretchr/testify/require"

	"github.com/fwup-go/fwup/internal/archive"
	"github.com/fwup-go/fwup/internal/config"
)

func writeHostFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func hashHex(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestBuildMeasuresHashesAndStreamsResources(t *testing.T) {
	dir := t.TempDir()
	rootfsContent := "a firmware payload of some size"
	rootfsPath := writeHostFile(t, dir, "rootfs.img", rootfsContent)

	store := config.New()
	store.SetFileResource("rootfs.img", config.FileResource{HostPath: rootfsPath})
	require.NoError(t, store.SetTaskOnResource("complete", "rootfs.img", config.FunList{"2", "raw_write", "1"}))

	var buf bytes.Buffer
	b := &Builder{Config: store}
	require.NoError(t, b.Build(&buf))

	fr, err := store.FileResource("rootfs.img")
	require.NoError(t, err)
	require.Equal(t, int64(len(rootfsContent)), fr.Length)
	require.Equal(t, hashHex([]byte(rootfsContent)), fr.Blake2b)
	require.Equal(t, []int64{int64(len(rootfsContent))}, fr.Runs)

	data := buf.Bytes()
	r, err := archive.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entry, rc, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, archive.ManifestName, entry.Name)
	manifestBytes := make([]byte, entry.Size)
	_, err = io.ReadFull(rc, manifestBytes)
	require.NoError(t, err)
	rc.Close()
	require.Contains(t, string(manifestBytes), "rootfs.img")

	entry, rc, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, "rootfs.img", entry.Name)
	resourceBytes := make([]byte, entry.Size)
	_, err = io.ReadFull(rc, resourceBytes)
	require.NoError(t, err)
	rc.Close()
	require.Equal(t, rootfsContent, string(resourceBytes))
}

func TestBuildRejectsMalformedFunlist(t *testing.T) {
	store := config.New()
	// Truncated raw_memset tuple: argc says two operands, one is present.
	require.NoError(t, store.SetTaskOnInit("complete", config.FunList{"3", "raw_memset", "0"}))

	var buf bytes.Buffer
	b := &Builder{Config: store}
	err := b.Build(&buf)
	require.Error(t, err)
	require.Zero(t, buf.Len())
}

func TestBuildRejectsUnknownAction(t *testing.T) {
	store := config.New()
	require.NoError(t, store.SetTaskOnInit("complete", config.FunList{"2", "raw_wriet", "0"}))

	var buf bytes.Buffer
	b := &Builder{Config: store}
	require.Error(t, b.Build(&buf))
}

func TestBuildRejectsFileOnlyActionOutsideOnResource(t *testing.T) {
	store := config.New()
	require.NoError(t, store.SetTaskOnFinish("complete", config.FunList{"2", "raw_write", "0"}))

	var buf bytes.Buffer
	b := &Builder{Config: store}
	require.Error(t, b.Build(&buf))
}

func TestBuildSkipsResourcesWithoutHostPath(t *testing.T) {
	store := config.New()
	store.SetFileResource("external.img", config.FileResource{Blake2b: hashHex([]byte("precomputed")), Length: 11, Runs: []int64{11}})

	var buf bytes.Buffer
	b := &Builder{Config: store}
	require.NoError(t, b.Build(&buf))

	data := buf.Bytes()
	r, err := archive.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entry, rc, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, archive.ManifestName, entry.Name)
	rc.Close()

	_, _, err = r.Next()
	require.Error(t, err)
}
