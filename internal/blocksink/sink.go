// Package blocksink implements the output sink named in spec §6: a
// pread/pwrite/trim/truncate-addressable destination for the block cache.
package blocksink

import "io"

// Sink is the contract the block cache, FAT adapter, and U-Boot codec write
// through. It is the sole path to the output device (spec §4.3 invariant).
type Sink interface {
	// PreadAt reads len(p) bytes starting at off. A short read (fewer bytes
	// available than requested, and the sink cannot grow to satisfy it) is
	// an io_error.
	PreadAt(p []byte, off int64) (n int, err error)

	// PwriteAt writes p at off, growing the sink if it is a regular file.
	PwriteAt(p []byte, off int64) (n int, err error)

	// Trim issues a discard over [off, off+count). It takes no hard/soft
	// flag: the block cache decides that distinction itself and only calls
	// the sink for a hard trim.
	Trim(off, count int64) error

	// Truncate grows or shrinks the sink to exactly size bytes. The apply
	// path does not call it: raw_write extends the sink across a trailing
	// hole by writing the hole's final byte instead.
	Truncate(size int64) error

	// Size reports the sink's current size, or -1 if unknown (e.g. a block
	// device whose capacity wasn't queried).
	Size() int64

	io.Closer
}
