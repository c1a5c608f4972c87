package sparse

import (
	"fmt"
	"io"

	"github.com/fwup-go/fwup/internal/constants"
)

// ResourceStream yields a resource's data bytes, in ascending data-offset
// order, as (destination offset, buffer) chunks, consuming src exactly
// once (spec §4.5). A zero-length buffer with a nil error is the sole
// termination signal.
type ResourceStream struct {
	src       io.Reader
	runs      []dataRun
	runIdx    int
	offInRun  int64
	chunkSize int
}

// NewResourceStream builds a stream over m's data runs, pulling from src.
func NewResourceStream(src io.Reader, m Map) *ResourceStream {
	return &ResourceStream{
		src:       src,
		runs:      m.dataRuns(),
		chunkSize: constants.StreamChunkSize,
	}
}

// Next returns the next chunk of data bytes and the absolute destination
// offset (within the resource's total, hole-inclusive, address space) it
// belongs at. len(buf)==0, err==nil signals EOF.
func (s *ResourceStream) Next() (buf []byte, destOffset int64, err error) {
	for s.runIdx < len(s.runs) {
		run := s.runs[s.runIdx]
		remaining := run.length - s.offInRun
		if remaining <= 0 {
			s.runIdx++
			s.offInRun = 0
			continue
		}

		n := remaining
		if n > int64(s.chunkSize) {
			n = int64(s.chunkSize)
		}

		buf = make([]byte, n)
		read, rerr := io.ReadFull(s.src, buf)
		if rerr != nil && rerr != io.EOF && rerr != io.ErrUnexpectedEOF {
			return nil, 0, rerr
		}
		if int64(read) < n {
			return nil, 0, fmt.Errorf("resource stream: underrun, wanted %d bytes got %d", n, read)
		}

		destOffset = run.destOffset + s.offInRun
		s.offInRun += n
		return buf, destOffset, nil
	}
	return nil, 0, nil
}
