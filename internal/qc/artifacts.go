package qc

import (
	"encoding/json"
	"math"
	"strconv"
)

// FloatSeries is a float64 slice whose JSON form encodes NaN as null, so
// gaps in time-binned series survive serialization.
type FloatSeries []float64

// MarshalJSON implements json.Marshaler.
func (s FloatSeries) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, len(s)*8+2)
	buf = append(buf, '[')
	for i, v := range s {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
	}
	buf = append(buf, ']')
	return buf, nil
}

// UnmarshalJSON implements json.Unmarshaler, mapping null back to NaN.
func (s *FloatSeries) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(FloatSeries, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	*s = out
	return nil
}

// Quantiles holds the five-point distribution markers used by density
// artifacts.
type Quantiles struct {
	P10    float64 `json:"p10"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
}

// Density1D is a smoothed one-dimensional histogram of a read field.
type Density1D struct {
	Field string `json:"field"`
	Level Level  `json:"level"`
	// Scale is "log" or "linear" and describes the bin spacing.
	Scale string `json:"scale"`
	// X holds the right edge of each bin.
	X FloatSeries `json:"x"`
	// Y holds the smoothed per-bin counts.
	Y         FloatSeries `json:"y"`
	Quantiles Quantiles   `json:"quantiles"`
	// YMax is the highest smoothed count; renderers add headroom above it.
	YMax float64 `json:"y_max"`
	// YRangeMax is YMax plus one sixth of headroom for marker labels.
	YRangeMax float64 `json:"y_range_max"`
}

// Density2D is a smoothed two-dimensional histogram of read length versus
// quality.
type Density2D struct {
	Level  Level  `json:"level"`
	XField string `json:"x_field"`
	YField string `json:"y_field"`
	// X and Y hold the bin edges along each axis.
	X FloatSeries `json:"x"`
	Y FloatSeries `json:"y"`
	// Z is indexed [yBin][xBin].
	Z []FloatSeries `json:"z"`
	// XMedian and YMedian mark the joint median point.
	XMedian float64 `json:"x_median"`
	YMedian float64 `json:"y_median"`
	ZMin    float64 `json:"z_min"`
	ZMax    float64 `json:"z_max"`
	// ContourStep is the suggested iso-line spacing: (ZMax-ZMin)/15.
	ContourStep float64 `json:"contour_step"`
}

// Milestone marks when a given percentage of the total output was reached.
type Milestone struct {
	Percent   int     `json:"percent"`
	TimeHours float64 `json:"time_hours"`
	Amount    float64 `json:"amount"`
}

// OutputOverTime is the cumulative and interval sequencing yield.
type OutputOverTime struct {
	Level Level      `json:"level"`
	Count CountLevel `json:"count"`
	// Time holds the bin positions in experiment hours.
	Time FloatSeries `json:"time"`
	// Cumulative is the running total per bin, rescaled for sampling.
	Cumulative FloatSeries `json:"cumulative"`
	// Interval is the smoothed per-bin yield rescaled to the cumulative
	// maximum so both series share one axis.
	Interval   FloatSeries `json:"interval"`
	Total      float64     `json:"total"`
	Milestones []Milestone `json:"milestones"`
}

// FieldOverTime tracks the distribution of a read field per time bin.
// Bins with no reads hold NaN (null in JSON).
type FieldOverTime struct {
	Level  Level       `json:"level"`
	Field  string      `json:"field"`
	Time   FloatSeries `json:"time"`
	Min    FloatSeries `json:"min"`
	Max    FloatSeries `json:"max"`
	Q1     FloatSeries `json:"q1"`
	Q3     FloatSeries `json:"q3"`
	Median FloatSeries `json:"median"`
}

// BarcodeCount is the read tally of one barcode.
type BarcodeCount struct {
	Barcode string  `json:"barcode"`
	Reads   int     `json:"reads"`
	Percent float64 `json:"percent"`
}

// ChannelActivity is a time-bin by channel matrix of read or base counts.
type ChannelActivity struct {
	Level    Level      `json:"level"`
	Count    CountLevel `json:"count"`
	Channels int        `json:"channels"`
	// Time holds the bin positions in experiment hours.
	Time FloatSeries `json:"time"`
	// Z is indexed [timeBin][channel-1], smoothed along the time axis.
	Z []FloatSeries `json:"z"`
}

// SummaryRow is one line of the run summary table.
type SummaryRow struct {
	Label          string  `json:"label"`
	Reads          int     `json:"reads"`
	Bases          int64   `json:"bases"`
	MedianLength   float64 `json:"median_length"`
	N50            float64 `json:"n50"`
	MedianQscore   float64 `json:"median_qscore"`
	ActiveChannels int     `json:"active_channels"`
	DurationHours  float64 `json:"duration_hours"`
}

// RunStats describes the run-level shape of a read population.
type RunStats struct {
	DurationHours  float64 `json:"run_duration_hours"`
	ActiveChannels int     `json:"active_channels"`
	RunIDs         int     `json:"runid_number"`
	Barcodes       int     `json:"barcodes_number,omitempty"`
}

// BasecallStats describes the basecall-level shape of a read population.
type BasecallStats struct {
	Reads int   `json:"reads_number"`
	Bases int64 `json:"bases_number"`
	// LengthQuantiles and QualityQuantiles hold nine markers: min, 1st,
	// 10th, 25th, 50th, 75th, 90th and 99th percentiles, max.
	LengthQuantiles  FloatSeries `json:"len_quantiles"`
	N50              float64     `json:"n50"`
	QualityQuantiles FloatSeries `json:"qual_quantiles"`
}

// MedianLength returns the median marker of the length quantiles.
func (b BasecallStats) MedianLength() float64 { return b.LengthQuantiles[len(b.LengthQuantiles)/2] }

// MedianQscore returns the median marker of the quality quantiles.
func (b BasecallStats) MedianQscore() float64 { return b.QualityQuantiles[len(b.QualityQuantiles)/2] }

// DatasetStats bundles the run and basecall statistics of one population.
type DatasetStats struct {
	Run      RunStats      `json:"run"`
	Basecall BasecallStats `json:"basecall"`
}
