package blocksink

import (
	"fmt"
	"sync"
)

// shardSize is the size of each memory shard (64KB), giving fine-enough
// locking granularity for tests that exercise overlapping writes without
// serializing the whole sink behind one mutex.
const shardSize = 64 * 1024

// MemorySink is a RAM-backed Sink for hermetic tests of the block cache and
// actions, pre-sized to an initial capacity and grown on demand by writes
// past its end. Trim zeroes the
// range, matching what BLKDISCARD does to a real device's readback.
type MemorySink struct {
	mu     sync.Mutex
	data   []byte
	shards []sync.RWMutex
}

// NewMemory creates a memory sink pre-sized to size bytes. PwriteAt beyond
// the current size grows the buffer, mirroring a regular file.
func NewMemory(size int64) *MemorySink {
	numShards := (size + shardSize - 1) / shardSize
	if numShards < 1 {
		numShards = 1
	}
	return &MemorySink{
		data:   make([]byte, size),
		shards: make([]sync.RWMutex, numShards),
	}
}

func (m *MemorySink) shardRange(off, length int64) (start, end int) {
	if length <= 0 {
		length = 1
	}
	start = int(off / shardSize)
	end = int((off + length - 1) / shardSize)
	if end >= len(m.shards) {
		end = len(m.shards) - 1
	}
	if start > end {
		start = end
	}
	return start, end
}

func (m *MemorySink) growLocked(minSize int64) {
	if minSize <= int64(len(m.data)) {
		return
	}
	grown := make([]byte, minSize)
	copy(grown, m.data)
	m.data = grown
	needShards := (minSize + shardSize - 1) / shardSize
	for int64(len(m.shards)) < needShards {
		m.shards = append(m.shards, sync.RWMutex{})
	}
}

func (m *MemorySink) PreadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	size := int64(len(m.data))
	m.mu.Unlock()

	if off >= size {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, m.sliceAt(off, int64(len(p))))
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (m *MemorySink) sliceAt(off, length int64) []byte {
	m.mu.Lock()
	size := int64(len(m.data))
	m.mu.Unlock()

	avail := size - off
	if avail <= 0 {
		return nil
	}
	if length > avail {
		length = avail
	}

	start, end := m.shardRange(off, length)
	for i := start; i <= end; i++ {
		m.shards[i].RLock()
	}
	defer func() {
		for i := start; i <= end; i++ {
			m.shards[i].RUnlock()
		}
	}()
	out := make([]byte, length)
	copy(out, m.data[off:off+length])
	return out
}

func (m *MemorySink) PwriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}

	m.mu.Lock()
	m.growLocked(off + int64(len(p)))
	m.mu.Unlock()

	start, end := m.shardRange(off, int64(len(p)))
	for i := start; i <= end; i++ {
		m.shards[i].Lock()
	}
	n := copy(m.data[off:off+int64(len(p))], p)
	for i := start; i <= end; i++ {
		m.shards[i].Unlock()
	}
	return n, nil
}

func (m *MemorySink) Trim(off, count int64) error {
	m.mu.Lock()
	size := int64(len(m.data))
	m.mu.Unlock()

	end := off + count
	if end > size {
		end = size
	}
	if off >= end {
		return nil
	}

	start, stop := m.shardRange(off, end-off)
	for i := start; i <= stop; i++ {
		m.shards[i].Lock()
	}
	for i := off; i < end; i++ {
		m.data[i] = 0
	}
	for i := start; i <= stop; i++ {
		m.shards[i].Unlock()
	}
	return nil
}

func (m *MemorySink) Truncate(size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size <= int64(len(m.data)) {
		m.data = m.data[:size]
		return nil
	}
	m.growLocked(size)
	return nil
}

func (m *MemorySink) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data))
}

func (m *MemorySink) Close() error {
	return nil
}

// Bytes returns a copy of the sink's current contents, for test assertions.
func (m *MemorySink) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}
