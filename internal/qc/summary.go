package qc

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/nanoqc/nanoqc/internal/seqsum"
	"github.com/nanoqc/nanoqc/internal/stats"
)

// GroupBy selects the grouping key of a summary table.
type GroupBy string

const (
	// GroupNone yields a single row covering the whole population.
	GroupNone GroupBy = ""
	// GroupRunID yields one row per run ID.
	GroupRunID GroupBy = "run_id"
	// GroupBarcode yields one row per barcode.
	GroupBarcode GroupBy = "barcode"
)

// statsMarkers are the nine distribution markers reported per field:
// min, C1, D1, Q1, median, Q3, D9, C99, max.
var statsMarkers = []float64{0, 1, 10, 25, 50, 75, 90, 99, 100}

// Stats computes the run/basecall statistics of one population, the
// centrepiece of the summary document.
func (a *Analyzer) Stats(level Level) (DatasetStats, error) {
	v, err := a.view(level)
	if err != nil {
		return DatasetStats{}, err
	}
	reads := v.reads

	lens := lengths(reads)
	quals := qscores(reads)

	d := DatasetStats{
		Run: RunStats{
			DurationHours:  stats.Ptp(timesOf(reads)) / 3600,
			ActiveChannels: len(lo.Uniq(channelsOf(reads))),
			RunIDs:         len(lo.Uniq(runIDsOf(reads))),
		},
		Basecall: BasecallStats{
			Reads:            len(reads),
			Bases:            int64(stats.Sum(lens)),
			LengthQuantiles:  stats.Percentiles(lens, statsMarkers),
			N50:              stats.N50(lens),
			QualityQuantiles: stats.Percentiles(quals, statsMarkers),
		},
	}
	if a.ds.HasBarcodes {
		d.Run.Barcodes = len(lo.Uniq(barcodesOf(reads)))
	}
	return d, nil
}

// Summary builds the summary table for a population, optionally grouped by
// run ID or barcode. The ungrouped row is labelled "All".
func (a *Analyzer) Summary(level Level, groupBy GroupBy) ([]SummaryRow, error) {
	v, err := a.view(level)
	if err != nil {
		return nil, err
	}

	switch groupBy {
	case GroupNone:
		return []SummaryRow{summaryRow("All", v.reads)}, nil
	case GroupRunID:
		groups := lo.GroupBy(v.reads, func(r seqsum.Read) string { return r.RunID })
		return summaryRows(groups), nil
	case GroupBarcode:
		if !a.ds.HasBarcodes {
			return nil, fmt.Errorf("no barcode information available")
		}
		groups := lo.GroupBy(v.reads, func(r seqsum.Read) string { return r.Barcode })
		return summaryRows(groups), nil
	default:
		return nil, fmt.Errorf("unknown group key %q", groupBy)
	}
}

func summaryRows(groups map[string][]seqsum.Read) []SummaryRow {
	labels := lo.Keys(groups)
	sort.Strings(labels)
	rows := make([]SummaryRow, 0, len(labels))
	for _, label := range labels {
		rows = append(rows, summaryRow(label, groups[label]))
	}
	return rows
}

func summaryRow(label string, reads []seqsum.Read) SummaryRow {
	lens := lengths(reads)
	return SummaryRow{
		Label:          label,
		Reads:          len(reads),
		Bases:          int64(stats.Sum(lens)),
		MedianLength:   stats.Median(lens),
		N50:            stats.N50(lens),
		MedianQscore:   stats.Median(qscores(reads)),
		ActiveChannels: len(lo.Uniq(channelsOf(reads))),
		DurationHours:  stats.Ptp(timesOf(reads)) / 3600,
	}
}

func timesOf(reads []seqsum.Read) []float64 {
	out := make([]float64, len(reads))
	for i, r := range reads {
		out[i] = r.StartTime
	}
	return out
}

func channelsOf(reads []seqsum.Read) []int {
	out := make([]int, len(reads))
	for i, r := range reads {
		out[i] = r.Channel
	}
	return out
}

func runIDsOf(reads []seqsum.Read) []string {
	out := make([]string, len(reads))
	for i, r := range reads {
		out[i] = r.RunID
	}
	return out
}

func barcodesOf(reads []seqsum.Read) []string {
	out := make([]string, len(reads))
	for i, r := range reads {
		out[i] = r.Barcode
	}
	return out
}
