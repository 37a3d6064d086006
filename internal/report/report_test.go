package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nanoqc/nanoqc/internal/qc"
	"github.com/nanoqc/nanoqc/internal/seqsum"
)

func testAnalyzer(t *testing.T) (*qc.Analyzer, qc.Config) {
	t.Helper()
	ds := &seqsum.Dataset{
		Reads: []seqsum.Read{
			{ReadID: "r1", RunID: "runA", Channel: 1, StartTime: 0, NumBases: 1000, MeanQscore: 10, Barcode: "barcode01"},
			{ReadID: "r2", RunID: "runA", Channel: 2, StartTime: 600, NumBases: 2000, MeanQscore: 12, Barcode: "barcode01"},
			{ReadID: "r3", RunID: "runB", Channel: 3, StartTime: 1200, NumBases: 500, MeanQscore: 5, Barcode: "barcode02"},
			{ReadID: "r4", RunID: "runB", Channel: 4, StartTime: 3600, NumBases: 4000, MeanQscore: 9, Barcode: "barcode02"},
		},
		RunType:     seqsum.RunType1D,
		RunIDs:      []string{"runA", "runB"},
		RunOffsets:  map[string]float64{"runA": 0, "runB": 0},
		HasBarcodes: true,
	}
	cfg := qc.DefaultConfig()
	a, err := qc.New(ds, cfg)
	require.NoError(t, err)
	return a, cfg
}

func buildTestReport(t *testing.T) *Report {
	t.Helper()
	a, cfg := testAnalyzer(t)
	p := DefaultParams()
	p.DensityBins = 20
	p.TimeBins = 10
	p.ActivityTimeBins = 5

	r, err := Build(context.Background(), a, "summary.txt", cfg, p)
	require.NoError(t, err)
	return r
}

func TestBuild(t *testing.T) {
	r := buildTestReport(t)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "nanoqc", r.Tool.Name)
	assert.Equal(t, seqsum.RunType1D, r.RunType)
	assert.Equal(t, 7.0, r.MinPassQual)

	assert.Equal(t, 4, r.AllReads.Basecall.Reads)
	assert.Equal(t, 3, r.PassReads.Basecall.Reads)

	require.Contains(t, r.Summary, qc.LevelAll)
	require.Contains(t, r.Summary, qc.LevelPass)
	require.Len(t, r.Summary[qc.LevelAll], 1)

	// Two runs: per-run summary present.
	require.NotNil(t, r.RunIDSummary)
	assert.Len(t, r.RunIDSummary[qc.LevelAll], 2)

	// Barcoded dataset: barcode artifacts present.
	require.NotNil(t, r.Barcodes)
	assert.Len(t, r.Barcodes[qc.LevelAll], 2)

	// all/pass x reads/bases.
	assert.Len(t, r.Output, 4)
	assert.Len(t, r.Activity, 4)

	assert.Contains(t, r.LenDensity, qc.LevelAll)
	assert.Contains(t, r.QualDensity, qc.LevelPass)
	assert.Contains(t, r.LenQualDensity, qc.LevelAll)
	assert.Contains(t, r.LenOverTime, qc.LevelAll)
	assert.Contains(t, r.QualOverTime, qc.LevelPass)
}

func TestBuildSingleRunOmitsRunSummary(t *testing.T) {
	ds := &seqsum.Dataset{
		Reads: []seqsum.Read{
			{ReadID: "r1", RunID: "runA", Channel: 1, StartTime: 0, NumBases: 1000, MeanQscore: 10},
			{ReadID: "r2", RunID: "runA", Channel: 2, StartTime: 600, NumBases: 2000, MeanQscore: 12},
		},
		RunType: seqsum.RunType1D,
		RunIDs:  []string{"runA"},
	}
	cfg := qc.DefaultConfig()
	a, err := qc.New(ds, cfg)
	require.NoError(t, err)

	r, err := Build(context.Background(), a, "summary.txt", cfg, DefaultParams())
	require.NoError(t, err)
	assert.Nil(t, r.RunIDSummary)
	assert.Nil(t, r.Barcodes)
	assert.Nil(t, r.BarcodeSummary)
}

func TestWriteJSONRoundTrip(t *testing.T) {
	r := buildTestReport(t)
	path := filepath.Join(t.TempDir(), "report.json")

	require.NoError(t, WriteJSON(context.Background(), path, r))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, r.ID, decoded["id"])
	assert.Equal(t, "1D", decoded["run_type"])
	require.Contains(t, decoded, "all_reads")
	require.Contains(t, decoded, "len_density")
	require.Contains(t, decoded, "output_over_time")
}

func TestWriteJSONOverwritesAtomically(t *testing.T) {
	r := buildTestReport(t)
	path := filepath.Join(t.TempDir(), "report.json")

	require.NoError(t, WriteJSON(context.Background(), path, r))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	r2 := buildTestReport(t)
	require.NoError(t, WriteJSON(context.Background(), path, r2))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.NotEqual(t, string(first), string(second), "report id must differ")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(second, &decoded))
	assert.Equal(t, r2.ID, decoded["id"])
}

func TestWriteXLSX(t *testing.T) {
	r := buildTestReport(t)
	path := filepath.Join(t.TempDir(), "report.xlsx")

	require.NoError(t, WriteXLSX(context.Background(), path, r))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck // test cleanup

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Run Stats")
	assert.Contains(t, sheets, "Summary")
	assert.Contains(t, sheets, "Run ID Summary")
	assert.Contains(t, sheets, "Barcodes")
	assert.NotContains(t, sheets, "Sheet1")

	got, err := f.GetCellValue("Run Stats", "A8")
	require.NoError(t, err)
	assert.Equal(t, "Reads", got)
	got, err = f.GetCellValue("Run Stats", "B8")
	require.NoError(t, err)
	assert.Equal(t, "4", got)

	header, err := f.GetCellValue("Summary", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Level", header)
}
