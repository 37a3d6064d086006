package seqsum

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSummary(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

const header1D = "read_id\trun_id\tchannel\tstart_time\tsequence_length_template\tmean_qscore_template"

func TestLoad1D(t *testing.T) {
	dir := t.TempDir()
	path := writeSummary(t, dir, "sequencing_summary.txt",
		header1D,
		"r1\trunA\t1\t10.0\t500\t9.1",
		"r2\trunA\t2\t5.0\t300\t6.2",
		"r3\trunA\t3\t20.0\t1200\t11.4",
	)

	ds, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)

	assert.Equal(t, RunType1D, ds.RunType)
	assert.False(t, ds.HasBarcodes)
	require.Len(t, ds.Reads, 3)

	// Sorted by start time.
	assert.Equal(t, "r2", ds.Reads[0].ReadID)
	assert.Equal(t, "r1", ds.Reads[1].ReadID)
	assert.Equal(t, "r3", ds.Reads[2].ReadID)

	assert.Equal(t, 300.0, ds.Reads[0].NumBases)
	assert.Equal(t, 6.2, ds.Reads[0].MeanQscore)
	assert.Equal(t, 2, ds.Reads[0].Channel)

	// Single run: no offset.
	assert.Equal(t, []string{"runA"}, ds.RunIDs)
	assert.Equal(t, 0.0, ds.RunOffsets["runA"])
}

func TestLoad1D2Autodetect(t *testing.T) {
	dir := t.TempDir()
	path := writeSummary(t, dir, "summary.txt",
		"read_id\trun_id\tchannel\tstart_time\tsequence_length_2d\tmean_qscore_2d",
		"r1\trunA\t1\t1.0\t800\t10.5",
	)

	ds, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, RunType1D2, ds.RunType)
	assert.Equal(t, 800.0, ds.Reads[0].NumBases)
}

func TestLoadForcedRunTypeMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeSummary(t, dir, "summary.txt",
		header1D,
		"r1\trunA\t1\t1.0\t800\t10.5",
	)

	_, err := Load(context.Background(), path, Options{RunType: RunType1D2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sequence_length_2d")
}

func TestLoadInvalidRunType(t *testing.T) {
	dir := t.TempDir()
	path := writeSummary(t, dir, "summary.txt", header1D, "r1\trunA\t1\t1.0\t800\t10.5")

	_, err := Load(context.Background(), path, Options{RunType: "3D"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run type")
}

func TestLoadNoFiles(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "*.txt"), Options{})
	require.ErrorIs(t, err, ErrNoFiles)
}

func TestLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSummary(t, dir, "summary.txt", header1D)

	_, err := Load(context.Background(), path, Options{})
	require.ErrorIs(t, err, ErrNoReads)
}

func TestLoadDropsUnparseableRows(t *testing.T) {
	dir := t.TempDir()
	path := writeSummary(t, dir, "summary.txt",
		header1D,
		"r1\trunA\t1\t1.0\t500\t9.1",
		"r2\trunA\tnot-a-channel\t2.0\t300\t6.2",
		"r3\trunA\t2\t3.0\tNA\t7.0",
		"r4\trunA\t3\t4.0\t200\t",
	)

	ds, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, ds.Reads, 1)
	assert.Equal(t, "r1", ds.Reads[0].ReadID)
	assert.Equal(t, 3, ds.Dropped.Malformed)
	assert.Equal(t, 1, ds.Files)
}

func TestLoadCalibrationFilter(t *testing.T) {
	dir := t.TempDir()
	header := header1D + "\tcalibration_strand_genome_template"
	path := writeSummary(t, dir, "summary.txt",
		header,
		"r1\trunA\t1\t1.0\t500\t9.1\tfiltered_out",
		"r2\trunA\t2\t2.0\t300\t6.2\tLambda_3.6kb",
		"r3\trunA\t3\t3.0\t900\t8.0\tno_match",
	)

	ds, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, ds.Reads, 2)
	assert.Equal(t, "r1", ds.Reads[0].ReadID)
	assert.Equal(t, "r3", ds.Reads[1].ReadID)
	assert.Equal(t, 1, ds.Dropped.Calibration)
}

func TestLoadCalibrationFilterAllDiscarded(t *testing.T) {
	dir := t.TempDir()
	header := header1D + "\tcalibration_strand_genome_template"
	path := writeSummary(t, dir, "summary.txt",
		header,
		"r1\trunA\t1\t1.0\t500\t9.1\tLambda_3.6kb",
	)

	_, err := Load(context.Background(), path, Options{})
	require.ErrorIs(t, err, ErrNoReads)
	assert.Contains(t, err.Error(), "calibration")
}

func TestLoadZeroLengthFilter(t *testing.T) {
	dir := t.TempDir()
	path := writeSummary(t, dir, "summary.txt",
		header1D,
		"r1\trunA\t1\t1.0\t0\t9.1",
		"r2\trunA\t2\t2.0\t300\t6.2",
	)

	ds, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, ds.Reads, 1)
	assert.Equal(t, "r2", ds.Reads[0].ReadID)
	assert.Equal(t, 1, ds.Dropped.ZeroLength)
}

func TestLoadRunOrderingAndOffsets(t *testing.T) {
	dir := t.TempDir()
	// runB has higher throughput (3 reads over 1s) than runA (2 reads over
	// 10s), so runB comes first and runA is shifted after it.
	path := writeSummary(t, dir, "summary.txt",
		header1D,
		"a1\trunA\t1\t0.0\t100\t8.0",
		"a2\trunA\t2\t10.0\t100\t8.0",
		"b1\trunB\t3\t0.0\t100\t8.0",
		"b2\trunB\t4\t0.5\t100\t8.0",
		"b3\trunB\t5\t1.0\t100\t8.0",
	)

	ds, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"runB", "runA"}, ds.RunIDs)
	assert.Equal(t, 0.0, ds.RunOffsets["runB"])
	// runB max start is 1.0, so runA starts at offset 2.0.
	assert.Equal(t, 2.0, ds.RunOffsets["runA"])

	// Timeline is continuous and sorted.
	var prev float64
	for _, r := range ds.Reads {
		require.GreaterOrEqual(t, r.StartTime, prev)
		prev = r.StartTime
	}
	// Last read overall is a2 at 10 + 2.
	last := ds.Reads[len(ds.Reads)-1]
	assert.Equal(t, "a2", last.ReadID)
	assert.Equal(t, 12.0, last.StartTime)
}

func TestLoadRunIDSelection(t *testing.T) {
	dir := t.TempDir()
	path := writeSummary(t, dir, "summary.txt",
		header1D,
		"a1\trunA\t1\t0.0\t100\t8.0",
		"b1\trunB\t2\t0.0\t100\t8.0",
	)

	ds, err := Load(context.Background(), path, Options{RunIDs: []string{"runB"}})
	require.NoError(t, err)
	require.Len(t, ds.Reads, 1)
	assert.Equal(t, "b1", ds.Reads[0].ReadID)
	assert.Equal(t, 1, ds.Dropped.RunID)

	_, err = Load(context.Background(), path, Options{RunIDs: []string{"runC"}})
	require.ErrorIs(t, err, ErrNoReads)
}

func TestLoadMultiFileInnerJoin(t *testing.T) {
	dir := t.TempDir()
	writeSummary(t, dir, "summary_1.txt",
		header1D+"\tbarcode_arrangement",
		"r1\trunA\t1\t1.0\t500\t9.1\tbarcode01",
	)
	writeSummary(t, dir, "summary_2.txt",
		header1D,
		"r2\trunA\t2\t2.0\t300\t8.2",
	)

	ds, err := Load(context.Background(), filepath.Join(dir, "summary_*.txt"), Options{})
	require.NoError(t, err)
	require.Len(t, ds.Reads, 2)
	assert.Equal(t, 2, ds.Files)
	// barcode column only exists in one file: inner join drops it.
	assert.False(t, ds.HasBarcodes)
}

func TestLoadBarcodes(t *testing.T) {
	dir := t.TempDir()
	path := writeSummary(t, dir, "summary.txt",
		header1D+"\tbarcode_arrangement",
		"r1\trunA\t1\t1.0\t500\t9.1\tbarcode01",
		"r2\trunA\t2\t2.0\t300\t8.2\tbarcode02",
	)

	ds, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.True(t, ds.HasBarcodes)
	assert.Equal(t, "barcode01", ds.Reads[0].Barcode)
}

func TestDatasetAccessors(t *testing.T) {
	ds := &Dataset{Reads: []Read{
		{Channel: 3, StartTime: 1, NumBases: 100, MeanQscore: 9},
		{Channel: 510, StartTime: 2, NumBases: 200, MeanQscore: 10},
	}}
	assert.Equal(t, []float64{100, 200}, ds.Lengths())
	assert.Equal(t, []float64{9, 10}, ds.Qscores())
	assert.Equal(t, []float64{1, 2}, ds.StartTimes())
	assert.Equal(t, 510, ds.MaxChannel())
}
