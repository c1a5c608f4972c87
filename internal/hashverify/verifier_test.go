package hashverify

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/minio/blake2b-simd"
	"github.com/stretchr/testify/require"
)

func digestHex(t *testing.T, data []byte) string {
	t.Helper()
	h := blake2b.New256()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func TestVerifierMatchesExpectedDigest(t *testing.T) {
	var sink bytes.Buffer
	v := New(&sink)

	data := []byte("firmware payload bytes")
	n, err := v.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	require.NoError(t, v.Verify(digestHex(t, data)))
	require.Equal(t, data, sink.Bytes())
	require.Equal(t, int64(len(data)), v.BytesWritten())
}

func TestVerifierDetectsMismatch(t *testing.T) {
	var sink bytes.Buffer
	v := New(&sink)
	_, err := v.Write([]byte("actual bytes"))
	require.NoError(t, err)

	err = v.Verify(digestHex(t, []byte("different bytes")))
	require.Error(t, err)
}

func TestValidateHex(t *testing.T) {
	require.NoError(t, ValidateHex(digestHex(t, []byte("x"))))
	require.Error(t, ValidateHex("too-short"))
	require.Error(t, ValidateHex(string(make([]byte, 64)))) // not hex
}
