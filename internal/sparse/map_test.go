package sparse

import "testing"

func TestDataSizeTotalSizeEndingHole(t *testing.T) {
	m, err := New([]int64{4096, 1048576})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := m.DataSize(); got != 4096 {
		t.Errorf("DataSize() = %d, want 4096", got)
	}
	if got := m.TotalSize(); got != 4096+1048576 {
		t.Errorf("TotalSize() = %d, want %d", got, 4096+1048576)
	}
	length, ok := m.EndingHole()
	if !ok || length != 1048576 {
		t.Errorf("EndingHole() = (%d, %v), want (1048576, true)", length, ok)
	}
}

func TestEndingHoleFalseWhenRunsEndOnData(t *testing.T) {
	m, err := New([]int64{100, 50, 25})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := m.EndingHole(); ok {
		t.Error("EndingHole() should be false when the run list ends on data")
	}
	if got := m.DataSize(); got != 125 {
		t.Errorf("DataSize() = %d, want 125", got)
	}
}

func TestNewRejectsNegativeRuns(t *testing.T) {
	if _, err := New([]int64{10, -1}); err == nil {
		t.Error("New should reject a negative run length")
	}
}

func TestAllDataNoHoles(t *testing.T) {
	m, _ := New([]int64{512})
	if m.TotalSize() != m.DataSize() {
		t.Error("a single data run should have TotalSize == DataSize")
	}
	if _, ok := m.EndingHole(); ok {
		t.Error("a single data run never ends on a hole")
	}
}
