package blocksink

// DiscardSink answers every read as zero and accepts every write without
// retaining any bytes, tracking only the high-water mark a real sink would
// have grown to. It backs verify mode's apply-shaped walk (spec §6 "verify"):
// hash verification and progress accounting only need to observe the bytes
// that flow through an action, not persist them.
type DiscardSink struct {
	size int64
}

func (s *DiscardSink) PreadAt(p []byte, off int64) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func (s *DiscardSink) PwriteAt(p []byte, off int64) (int, error) {
	if end := off + int64(len(p)); end > s.size {
		s.size = end
	}
	return len(p), nil
}

func (s *DiscardSink) Trim(off, count int64) error { return nil }

func (s *DiscardSink) Truncate(size int64) error {
	s.size = size
	return nil
}

func (s *DiscardSink) Size() int64 { return s.size }

func (s *DiscardSink) Close() error { return nil }
