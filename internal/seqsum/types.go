package seqsum

// RunType identifies the sequencing mode a summary table was produced by.
type RunType string

const (
	// RunType1D is the single-pass sequencing mode.
	RunType1D RunType = "1D"
	// RunType1D2 is the paired-pass sequencing mode.
	RunType1D2 RunType = "1D2"
)

// Source column names as written by the basecallers.
const (
	colReadID      = "read_id"
	colRunID       = "run_id"
	colChannel     = "channel"
	colStartTime   = "start_time"
	colLen1D       = "sequence_length_template"
	colQual1D      = "mean_qscore_template"
	colLen1D2      = "sequence_length_2d"
	colQual1D2     = "mean_qscore_2d"
	colCalibration = "calibration_strand_genome_template"
	colBarcode     = "barcode_arrangement"
)

// Read is one basecalled read after field normalization. StartTime is in
// seconds and already includes the per-run offset that stitches successive
// runs into a single timeline.
type Read struct {
	ReadID     string
	RunID      string
	Channel    int
	StartTime  float64
	NumBases   float64
	MeanQscore float64
	Barcode    string
}

// DropCounts tallies the reads removed by each cleanup stage.
type DropCounts struct {
	// Malformed rows were missing a required field or failed to parse.
	Malformed int
	// Calibration reads matched the calibration strand control.
	Calibration int
	// ZeroLength reads carried no basecalled sequence.
	ZeroLength int
	// RunID reads belonged to runs outside the requested run ID list.
	RunID int
}

// Dataset is the cleaned, time-ordered result of parsing one or more
// sequencing-summary files.
type Dataset struct {
	Reads   []Read
	RunType RunType

	// Files is the number of summary files the dataset was parsed from.
	Files int

	// Dropped records how many reads each cleanup stage removed.
	Dropped DropCounts

	// RunIDs in processing order: either the caller-supplied order or
	// sorted by decreasing throughput.
	RunIDs []string

	// RunOffsets maps each run ID to the start-time offset (seconds)
	// applied to its reads.
	RunOffsets map[string]float64

	HasBarcodes bool
}

// Lengths returns the num_bases column.
func (d *Dataset) Lengths() []float64 {
	out := make([]float64, len(d.Reads))
	for i, r := range d.Reads {
		out[i] = r.NumBases
	}
	return out
}

// Qscores returns the mean_qscore column.
func (d *Dataset) Qscores() []float64 {
	out := make([]float64, len(d.Reads))
	for i, r := range d.Reads {
		out[i] = r.MeanQscore
	}
	return out
}

// StartTimes returns the adjusted start_time column.
func (d *Dataset) StartTimes() []float64 {
	out := make([]float64, len(d.Reads))
	for i, r := range d.Reads {
		out[i] = r.StartTime
	}
	return out
}

// MaxChannel returns the highest channel id seen, or 0 for no reads.
func (d *Dataset) MaxChannel() int {
	max := 0
	for _, r := range d.Reads {
		if r.Channel > max {
			max = r.Channel
		}
	}
	return max
}
