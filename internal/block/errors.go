package block

import "fmt"

// fwupIOErrorShortRead is returned when the sink answers a block read/write
// with fewer bytes than a full block, which should never happen for a
// conforming Sink and indicates a lower-level I/O failure.
func fwupIOErrorShortRead(addr Addr) error {
	return fmt.Errorf("block cache: short I/O at block %d", addr)
}
