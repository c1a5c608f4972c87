// Package block implements the block cache every action writes through
// (spec §4.3, §4.4). It is the only path to the output sink: a
// direct-mapped, write-back cache over fixed-size blocks,
// single-writer-per-block by construction since the apply driver is the
// sole active entity (spec §5).
package block

import (
	"sort"

	"github.com/fwup-go/fwup/internal/blocksink"
	"github.com/fwup-go/fwup/internal/constants"
	"github.com/fwup-go/fwup/internal/logging"
)

// Addr is a block address distinct from a byte offset (spec §9 design
// note: "model a BlockAddr distinct from byte offsets; multiply only at
// the boundary to the sink").
type Addr uint64

// Size is FWUP_BLOCK_SIZE.
const Size = constants.BlockSize

// ByteOffset converts a block address to its byte offset in the sink.
func (a Addr) ByteOffset() int64 { return int64(a) * Size }

type state int

const (
	absent state = iota
	clean
	dirty
)

type entry struct {
	buf   [Size]byte
	state state
}

// Cache is the write-back block cache. maxDirty bounds how many dirty
// blocks may accumulate before a streamed write forces an eager
// write-back, capping memory independent of resource size.
type Cache struct {
	sink     blocksink.Sink
	blocks   map[Addr]*entry
	dirty    map[Addr]bool
	order    []Addr // FIFO insertion order of currently-dirty blocks
	maxDirty int
}

// NewCache wraps sink in a block cache. maxDirty <= 0 means unbounded (no
// eager flush; everything is written back on the final Flush).
func NewCache(sink blocksink.Sink, maxDirty int) *Cache {
	return &Cache{
		sink:     sink,
		blocks:   make(map[Addr]*entry),
		dirty:    make(map[Addr]bool),
		maxDirty: maxDirty,
	}
}

func blockRange(off, length int64) (first, last Addr) {
	first = Addr(off / Size)
	if length == 0 {
		return first, first
	}
	last = Addr((off + length - 1) / Size)
	return first, last
}

func (c *Cache) load(addr Addr) (*entry, error) {
	if e, ok := c.blocks[addr]; ok {
		return e, nil
	}
	e := &entry{state: clean}
	n, err := c.sink.PreadAt(e.buf[:], addr.ByteOffset())
	if err != nil {
		return nil, err
	}
	if n != Size {
		return nil, fwupIOErrorShortRead(addr)
	}
	c.blocks[addr] = e
	return e, nil
}

// Pread satisfies a read from whichever entries cover [off, off+len),
// falling back to the sink for blocks not yet cached.
func (c *Cache) Pread(buf []byte, off int64) error {
	if len(buf) == 0 {
		return nil
	}
	first, last := blockRange(off, int64(len(buf)))
	pos := 0
	for addr := first; addr <= last; addr++ {
		e, err := c.load(addr)
		if err != nil {
			return err
		}
		blockStart := addr.ByteOffset()
		srcOff := int64(0)
		if off > blockStart {
			srcOff = off - blockStart
		}
		n := copy(buf[pos:], e.buf[srcOff:])
		pos += n
	}
	return nil
}

// Pwrite writes buf at off. Partial-block updates are read-modify-write;
// full-block updates overwrite outright. streamed marks a bulk resource
// write, which may trigger an eager write-back once maxDirty is exceeded;
// non-streamed (metadata: MBR, env, FAT structures) writes are held until
// Flush.
func (c *Cache) Pwrite(buf []byte, off int64, streamed bool) error {
	if len(buf) == 0 {
		return nil
	}
	first, last := blockRange(off, int64(len(buf)))
	pos := 0
	for addr := first; addr <= last; addr++ {
		blockStart := addr.ByteOffset()
		dstOff := int64(0)
		if off > blockStart {
			dstOff = off - blockStart
		}
		n := int64(Size) - dstOff
		remaining := int64(len(buf) - pos)
		if n > remaining {
			n = remaining
		}

		full := dstOff == 0 && n == Size
		var e *entry
		if full {
			e = &entry{state: dirty}
			c.blocks[addr] = e
		} else {
			var err error
			e, err = c.load(addr)
			if err != nil {
				return err
			}
			e.state = dirty
		}
		copy(e.buf[dstOff:dstOff+n], buf[pos:pos+int(n)])
		c.markDirty(addr)
		pos += int(n)
	}
	if streamed {
		return c.spillIfNeeded()
	}
	return nil
}

func (c *Cache) markDirty(addr Addr) {
	if c.dirty[addr] {
		return
	}
	c.dirty[addr] = true
	c.order = append(c.order, addr)
}

func (c *Cache) spillIfNeeded() error {
	if c.maxDirty <= 0 {
		return nil
	}
	if over := len(c.order) - c.maxDirty; over > 0 {
		logging.Debug("cache eager spill", "dirty_blocks", len(c.order), "max_dirty", c.maxDirty)
	}
	for len(c.order) > c.maxDirty {
		addr := c.order[0]
		c.order = c.order[1:]
		if !c.dirty[addr] {
			continue
		}
		if err := c.writeBack(addr); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) writeBack(addr Addr) error {
	e, ok := c.blocks[addr]
	if !ok {
		return nil
	}
	n, err := c.sink.PwriteAt(e.buf[:], addr.ByteOffset())
	if err != nil {
		return err
	}
	if n != Size {
		return fwupIOErrorShortRead(addr)
	}
	e.state = clean
	delete(c.dirty, addr)
	return nil
}

// Trim clears any covering entries and, when hard is true, forwards the
// discard to the device.
func (c *Cache) Trim(off, count int64, hard bool) error {
	if count <= 0 {
		return nil
	}
	first, last := blockRange(off, count)
	for addr := first; addr <= last; addr++ {
		delete(c.blocks, addr)
		if c.dirty[addr] {
			delete(c.dirty, addr)
		}
	}
	if hard {
		return c.sink.Trim(off, count)
	}
	return nil
}

// Flush writes back every dirty block in ascending offset order.
func (c *Cache) Flush() error {
	addrs := make([]Addr, 0, len(c.dirty))
	for addr := range c.dirty {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	logging.Debug("cache flush", "dirty_blocks", len(addrs))
	for _, addr := range addrs {
		if err := c.writeBack(addr); err != nil {
			return err
		}
	}
	c.order = c.order[:0]
	return nil
}

// Close flushes pending writes and closes the underlying sink.
func (c *Cache) Close() error {
	if err := c.Flush(); err != nil {
		return err
	}
	return c.sink.Close()
}

// Size reports the sink's current size.
func (c *Cache) Size() int64 { return c.sink.Size() }

// Truncate resizes the underlying sink. The apply path does not call it;
// raw_write covers a trailing hole by writing its final byte.
func (c *Cache) Truncate(size int64) error { return c.sink.Truncate(size) }
