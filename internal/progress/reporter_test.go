package progress

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReporterPercentTracksAddedUnits(t *testing.T) {
	r := NewReporter(200)
	require.Equal(t, float64(0), r.Percent())

	r.Add(50)
	require.Equal(t, float64(25), r.Percent())

	r.Add(150)
	require.Equal(t, float64(100), r.Percent())
}

func TestReporterPercentClampsAboveTotal(t *testing.T) {
	r := NewReporter(10)
	r.Add(40)
	require.Equal(t, float64(100), r.Percent())
}

func TestReporterZeroTotalReportsComplete(t *testing.T) {
	r := NewReporter(0)
	require.Equal(t, float64(100), r.Percent())
}

func TestFrameWriterEmitsLengthPrefixedRecords(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)

	require.NoError(t, fw.Error("disk full"))
	require.NoError(t, fw.LastErr())

	out := buf.Bytes()
	require.Equal(t, byte(recordError), out[0])
	length := binary.BigEndian.Uint32(out[1:5])
	require.EqualValues(t, len("disk full"), length)
	require.Equal(t, "disk full", string(out[5:5+length]))
}

func TestFrameWriterInfoEmitsRecordAndLeavesNoError(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	fw.Info("starting task")

	out := buf.Bytes()
	require.Equal(t, byte(recordInfo), out[0])
	length := binary.BigEndian.Uint32(out[1:5])
	require.Equal(t, "starting task", string(out[5:5+length]))
	require.NoError(t, fw.LastErr())
}

func TestFrameWriterProgressEncodesReportedAndTotal(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	r := NewReporter(100)
	r.Add(30)

	require.NoError(t, fw.Progress(r))
	out := buf.Bytes()
	length := binary.BigEndian.Uint32(out[1:5])
	require.Equal(t, "30 100", string(out[5:5+length]))
}

func TestHumanUnitsFormatsByteCounts(t *testing.T) {
	r := NewReporter(1_000_000)
	r.Add(500_000)
	require.Contains(t, r.HumanUnits(), "MB")
}
