package block

// PadWriter buffers non-aligned writes so the cache sees block-aligned
// requests for resource streams (spec §4.4). It holds at most one partial
// block: a write contiguous with the held partial extends it, anything
// else forces the partial out first. Flush zero-pads the held partial to a
// full block: the padding covers the rest of that block, which is either a
// hole of the same resource or, for the resource's last block, the bytes
// past the resource's end.
type PadWriter struct {
	cache *Cache

	partial    [Size]byte
	partialOff int64 // byte offset of the partial block's start; block-aligned
	partialLen int   // 0 means no partial held
}

// NewPadWriter wraps cache. All writes through the pad writer are streamed
// writes (spec §4.3): they belong to a bulk resource stream and may be
// flushed eagerly by the cache to cap memory.
func NewPadWriter(cache *Cache) *PadWriter {
	return &PadWriter{cache: cache}
}

// Pwrite splits buf into a maybe-partial prefix, full-block middle, and
// maybe-partial suffix, flushing or stashing each.
func (w *PadWriter) Pwrite(buf []byte, off int64) error {
	if len(buf) == 0 {
		return nil
	}

	if w.partialLen > 0 {
		if off == w.partialOff+int64(w.partialLen) {
			n := copy(w.partial[w.partialLen:], buf)
			w.partialLen += n
			if w.partialLen == Size {
				if err := w.cache.Pwrite(w.partial[:], w.partialOff, true); err != nil {
					return err
				}
				w.partialLen = 0
			}
			buf = buf[n:]
			off += int64(n)
			if len(buf) == 0 {
				return nil
			}
		} else if err := w.Flush(); err != nil {
			return err
		}
	}

	// Non-aligned prefix with nothing held to merge into: hand it to the
	// cache directly, which read-modify-writes the covering block.
	if rem := off % Size; rem != 0 {
		n := int(Size - rem)
		if n > len(buf) {
			n = len(buf)
		}
		if err := w.cache.Pwrite(buf[:n], off, true); err != nil {
			return err
		}
		buf = buf[n:]
		off += int64(n)
		if len(buf) == 0 {
			return nil
		}
	}

	if full := len(buf) / Size * Size; full > 0 {
		if err := w.cache.Pwrite(buf[:full], off, true); err != nil {
			return err
		}
		buf = buf[full:]
		off += int64(full)
	}

	if len(buf) > 0 {
		copy(w.partial[:], buf)
		w.partialOff = off
		w.partialLen = len(buf)
	}
	return nil
}

// Flush writes any held partial block, zero-padded to a full block.
func (w *PadWriter) Flush() error {
	if w.partialLen == 0 {
		return nil
	}
	for i := w.partialLen; i < Size; i++ {
		w.partial[i] = 0
	}
	err := w.cache.Pwrite(w.partial[:], w.partialOff, true)
	w.partialLen = 0
	return err
}
