// Package hashverify provides the incremental BLAKE2b-256 hash discipline
// every data-carrying action applies (spec §4.2): one hash-and-stream loop
// shared by the block cache, a raw host file descriptor, and a spawned
// process's stdin (spec §9 "File-vs-pipe-vs-fd write duplication").
package hashverify

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/minio/blake2b-simd"
)

// HexLen is the length of a blake2b-256 hex digest, per spec §4.2's hash
// discipline ("a blake2b-256 hex string of length 64").
const HexLen = 64

// ValidateHex checks that s is a well-formed blake2b-256 hex digest.
func ValidateHex(s string) error {
	if len(s) != HexLen {
		return fmt.Errorf("blake2b-256 digest must be %d hex characters, got %d", HexLen, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return fmt.Errorf("blake2b-256 digest is not valid hex: %w", err)
	}
	return nil
}

// Verifier tees writes through to an underlying sink while accumulating a
// running BLAKE2b-256 digest, so the exact bytes delivered to the sink can
// be checked against the resource's manifest digest after the last byte.
type Verifier struct {
	out    io.Writer
	h      hash.Hash
	nBytes int64
}

// New wraps out with a hash verifier.
func New(out io.Writer) *Verifier {
	return &Verifier{out: out, h: blake2b.New256()}
}

// Write implements io.Writer: bytes are written to the sink first, and
// only hashed once the sink has accepted them.
func (v *Verifier) Write(p []byte) (int, error) {
	n, err := v.out.Write(p)
	if n > 0 {
		v.h.Write(p[:n])
		v.nBytes += int64(n)
	}
	return n, err
}

// BytesWritten returns the total number of bytes hashed so far.
func (v *Verifier) BytesWritten() int64 { return v.nBytes }

// Verify compares the accumulated digest against wantHex, which must
// already have passed ValidateHex.
func (v *Verifier) Verify(wantHex string) error {
	got := hex.EncodeToString(v.h.Sum(nil))
	if !strings.EqualFold(got, wantHex) {
		return fmt.Errorf("hash mismatch: got %s, want %s", got, wantHex)
	}
	return nil
}
