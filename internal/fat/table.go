package fat

import (
	"encoding/binary"
	"fmt"
)

// readFAT returns the 16-bit entry for cluster from the first FAT copy.
func (v *Volume) readFAT(cluster uint16) (uint16, error) {
	buf := make([]byte, 2)
	off := v.fatOffset + int64(cluster)*2
	if err := v.cache.Pread(buf, off); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// writeFAT writes value to cluster's entry in every FAT copy, per FAT's
// mirrored-table convention.
func (v *Volume) writeFAT(cluster uint16, value uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, value)
	for i := 0; i < int(v.numFATs); i++ {
		off := v.fatOffset + int64(i)*v.fatBytes + int64(cluster)*2
		if err := v.cache.Pwrite(buf, off, false); err != nil {
			return err
		}
	}
	return nil
}

// allocCluster finds a free cluster, marks it end-of-chain, and returns it.
func (v *Volume) allocCluster() (uint16, error) {
	for c := uint16(2); uint32(c) < v.totalClusters+2; c++ {
		val, err := v.readFAT(c)
		if err != nil {
			return 0, err
		}
		if val == clusterFree {
			if err := v.writeFAT(c, clusterEOC); err != nil {
				return 0, err
			}
			return c, nil
		}
	}
	return 0, fmt.Errorf("fat: filesystem full, no free clusters")
}

// chainClusters walks a cluster chain from start to end-of-chain.
func (v *Volume) chainClusters(start uint16) ([]uint16, error) {
	var out []uint16
	c := start
	for c != 0 && c < clusterEOCMin && c != clusterBad {
		out = append(out, c)
		next, err := v.readFAT(c)
		if err != nil {
			return nil, err
		}
		c = next
	}
	return out, nil
}

// freeChain releases every cluster in the chain starting at start.
func (v *Volume) freeChain(start uint16) error {
	c := start
	for c != 0 && c < clusterEOCMin && c != clusterBad {
		next, err := v.readFAT(c)
		if err != nil {
			return err
		}
		if err := v.writeFAT(c, clusterFree); err != nil {
			return err
		}
		c = next
	}
	return nil
}

// extendChain appends a freshly allocated cluster to the chain ending at
// last, returning the new cluster.
func (v *Volume) extendChain(last uint16) (uint16, error) {
	next, err := v.allocCluster()
	if err != nil {
		return 0, err
	}
	if err := v.writeFAT(last, next); err != nil {
		return 0, err
	}
	return next, nil
}

// clusterOffset returns the absolute byte offset of a data-region cluster.
func (v *Volume) clusterOffset(cluster uint16) int64 {
	return v.dataOffset + int64(cluster-2)*v.clusterSize
}
