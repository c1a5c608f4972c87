// Package uboot implements the CRC32-prefixed, NUL-separated variable-table
// codec for U-Boot environment blocks (spec §4.6), and the read-modify-write
// glue that lets uboot_setenv/uboot_unsetenv/uboot_clearenv/uboot_recover
// operate through the block cache the way every other write-shaped action
// does.
package uboot

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"
	"strings"

	"github.com/fwup-go/fwup/internal/block"
	"github.com/fwup-go/fwup/internal/logging"
)

const crcSize = 4

// ErrCorrupt is returned by Read when the CRC32 doesn't match or the
// variable table can't be parsed. Only Recover is allowed to swallow it.
type ErrCorrupt struct {
	Reason string
}

func (e *ErrCorrupt) Error() string { return "uboot: corrupt environment: " + e.Reason }

// Read verifies the CRC32 over buf[4:] and parses the NUL-separated
// name=value records up to the first empty record.
func Read(buf []byte) (map[string]string, error) {
	if len(buf) < crcSize {
		return nil, &ErrCorrupt{Reason: "buffer shorter than CRC header"}
	}
	want := crc32.ChecksumIEEE(buf[crcSize:])
	got := binary.LittleEndian.Uint32(buf[:crcSize])
	if got != want {
		return nil, &ErrCorrupt{Reason: fmt.Sprintf("crc32 mismatch: header %08x, computed %08x", got, want)}
	}

	vars := make(map[string]string)
	body := buf[crcSize:]
	start := 0
	for start < len(body) {
		end := indexByte(body[start:], 0)
		if end < 0 {
			return nil, &ErrCorrupt{Reason: "unterminated variable record"}
		}
		if end == 0 {
			break // empty record marks the end of the table
		}
		rec := string(body[start : start+end])
		eq := strings.IndexByte(rec, '=')
		if eq < 0 {
			return nil, &ErrCorrupt{Reason: fmt.Sprintf("record %q has no '='", rec)}
		}
		vars[rec[:eq]] = rec[eq+1:]
		start += end + 1
	}
	return vars, nil
}

// Write serializes vars in sorted order into buf, NUL-terminating the table
// and padding the remainder with 0xFF, then stamps the CRC32 header. buf's
// full length is used as the environment size.
func Write(buf []byte, vars map[string]string) error {
	if len(buf) < crcSize {
		return fmt.Errorf("uboot: environment buffer shorter than CRC header")
	}

	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(vars[name])
		b.WriteByte(0)
	}
	b.WriteByte(0)

	body := buf[crcSize:]
	packed := b.String()
	if len(packed) > len(body) {
		return fmt.Errorf("uboot: serialized environment (%d bytes) exceeds block size (%d)", len(packed), len(body))
	}
	for i := range body {
		body[i] = 0xFF
	}
	copy(body, packed)

	crc := crc32.ChecksumIEEE(body)
	binary.LittleEndian.PutUint32(buf[:crcSize], crc)
	return nil
}

// Recover reads buf; if the environment is corrupt it replaces buf in
// place with a fresh, empty, CRC-valid environment and returns an empty
// variable set with a nil error. A valid environment is left untouched.
func Recover(buf []byte) (map[string]string, error) {
	vars, err := Read(buf)
	if err == nil {
		return vars, nil
	}
	if _, ok := err.(*ErrCorrupt); !ok {
		return nil, err
	}
	if err := Write(buf, map[string]string{}); err != nil {
		return nil, err
	}
	return map[string]string{}, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// ReadAt reads and decodes the env_size-byte environment at the given
// absolute byte offset through the block cache.
func ReadAt(c *block.Cache, offset, size int64) (map[string]string, error) {
	buf := make([]byte, size)
	if err := c.Pread(buf, offset); err != nil {
		return nil, err
	}
	return Read(buf)
}

// WriteAt encodes vars and writes the full env_size-byte block through the
// block cache at the given absolute byte offset.
func WriteAt(c *block.Cache, offset, size int64, vars map[string]string) error {
	buf := make([]byte, size)
	if err := Write(buf, vars); err != nil {
		return err
	}
	return c.Pwrite(buf, offset, false)
}

// RecoverAt performs Recover against the block cache's contents at offset,
// writing back a fresh environment only if what's stored is corrupt. A
// valid environment is left untouched, no write issued.
func RecoverAt(c *block.Cache, offset, size int64) (map[string]string, error) {
	buf := make([]byte, size)
	if err := c.Pread(buf, offset); err != nil {
		return nil, err
	}
	vars, err := Read(buf)
	if err == nil {
		return vars, nil
	}
	if _, corrupt := err.(*ErrCorrupt); !corrupt {
		return nil, err
	}
	logging.Warn("u-boot environment corrupt, recovering", "offset", offset, "size", size)
	if err := Write(buf, map[string]string{}); err != nil {
		return nil, err
	}
	if err := c.Pwrite(buf, offset, false); err != nil {
		return nil, err
	}
	return map[string]string{}, nil
}

// SetVar is a read-modify-write helper for uboot_setenv.
func SetVar(c *block.Cache, offset, size int64, name, value string) error {
	vars, err := ReadAt(c, offset, size)
	if err != nil {
		return err
	}
	vars[name] = value
	return WriteAt(c, offset, size, vars)
}

// UnsetVar is a read-modify-write helper for uboot_unsetenv.
func UnsetVar(c *block.Cache, offset, size int64, name string) error {
	vars, err := ReadAt(c, offset, size)
	if err != nil {
		return err
	}
	delete(vars, name)
	return WriteAt(c, offset, size, vars)
}

// ClearEnv writes a fresh, empty, CRC-valid environment for uboot_clearenv.
func ClearEnv(c *block.Cache, offset, size int64) error {
	return WriteAt(c, offset, size, map[string]string{})
}
