// Package sparse represents a resource as an alternating sequence of data
// runs and holes (spec §4.5, data model §3) and streams a resource's data
// bytes in ascending offset order.
package sparse

import "fmt"

// Map is the ordered run-length description of one resource: Runs[0] is a
// data run (possibly zero-length), Runs[1] a hole, Runs[2] data, and so on.
// The final run may be a hole of any length.
type Map struct {
	Runs []int64
}

// New validates and wraps a raw run list. A negative run length is
// malformed configuration.
func New(runs []int64) (Map, error) {
	for _, r := range runs {
		if r < 0 {
			return Map{}, fmt.Errorf("sparse map: negative run length %d", r)
		}
	}
	return Map{Runs: append([]int64(nil), runs...)}, nil
}

// DataSize is the sum of even-indexed (data) runs.
func (m Map) DataSize() int64 {
	var n int64
	for i, r := range m.Runs {
		if i%2 == 0 {
			n += r
		}
	}
	return n
}

// TotalSize is the sum of all runs, data and holes.
func (m Map) TotalSize() int64 {
	var n int64
	for _, r := range m.Runs {
		n += r
	}
	return n
}

// EndingHole reports the length of the trailing hole, and whether the run
// list in fact ends on a hole (an odd number of runs means it ends on
// data instead).
func (m Map) EndingHole() (length int64, ok bool) {
	if len(m.Runs) == 0 || len(m.Runs)%2 != 0 {
		return 0, false
	}
	return m.Runs[len(m.Runs)-1], true
}

// dataRun is one contiguous data span's placement in destination space.
type dataRun struct {
	destOffset int64
	length     int64
}

func (m Map) dataRuns() []dataRun {
	var runs []dataRun
	var dest int64
	for i, r := range m.Runs {
		if i%2 == 0 {
			if r > 0 {
				runs = append(runs, dataRun{destOffset: dest, length: r})
			}
		}
		dest += r
	}
	return runs
}
