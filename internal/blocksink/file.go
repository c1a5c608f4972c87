package blocksink

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// FileSink wraps an *os.File — a regular file standing in for the target
// device, or the device node itself. Reads and writes go through
// unix.Pread/Pwrite so no seek state is shared with other operations; trim
// issues BLKDISCARD when the file is backed by a block device, and is a
// silent no-op on a regular file (there is nothing for a plain file to
// discard).
type FileSink struct {
	f        *os.File
	isDevice bool
}

// OpenFile opens path for read/write, creating a regular file if it does
// not exist. isDevice should be true when path names a block device node,
// which gates whether Trim attempts BLKDISCARD.
func OpenFile(path string, isDevice bool) (*FileSink, error) {
	flags := os.O_RDWR
	if !isDevice {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}
	return &FileSink{f: f, isDevice: isDevice}, nil
}

func (s *FileSink) PreadAt(p []byte, off int64) (int, error) {
	n, err := unix.Pread(int(s.f.Fd()), p, off)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		// Short reads past current EOF read as zero: a trailing hole that
		// hasn't been materialized yet still answers as zero bytes.
		for i := n; i < len(p); i++ {
			p[i] = 0
		}
		return len(p), nil
	}
	return n, nil
}

func (s *FileSink) PwriteAt(p []byte, off int64) (int, error) {
	return unix.Pwrite(int(s.f.Fd()), p, off)
}

// blkDiscard is Linux's BLKDISCARD block-ioctl request number
// (_IO(0x12, 119)); golang.org/x/sys/unix does not wrap it directly.
const blkDiscard = 0x1277

func (s *FileSink) Trim(off, count int64) error {
	if !s.isDevice {
		return nil
	}
	rng := [2]uint64{uint64(off), uint64(count)}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), blkDiscard, uintptr(unsafe.Pointer(&rng)))
	if errno != 0 {
		return errno
	}
	return nil
}

func (s *FileSink) Truncate(size int64) error {
	if s.isDevice {
		// Block devices have a fixed size; truncation is meaningless.
		return nil
	}
	return s.f.Truncate(size)
}

func (s *FileSink) Size() int64 {
	if s.isDevice {
		return -1
	}
	fi, err := s.f.Stat()
	if err != nil {
		return -1
	}
	return fi.Size()
}

func (s *FileSink) Close() error {
	return s.f.Close()
}
