package qc

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/nanoqc/nanoqc/internal/seqsum"
)

// DefaultMinBarcodePct is the default minimum share of reads a barcode
// must hold to appear in the counts.
const DefaultMinBarcodePct = 0.1

// BarcodeCounts tallies reads per barcode, sorted by barcode name.
// Barcodes must hold strictly more than minPercent of the population to
// be kept; a minPercent of zero keeps everything.
func (a *Analyzer) BarcodeCounts(level Level, minPercent float64) ([]BarcodeCount, error) {
	if !a.ds.HasBarcodes {
		return nil, fmt.Errorf("no barcode information available")
	}
	v, err := a.view(level)
	if err != nil {
		return nil, err
	}

	counts := lo.CountValuesBy(v.reads, func(r seqsum.Read) string { return r.Barcode })
	total := len(v.reads)

	labels := lo.Keys(counts)
	sort.Strings(labels)

	out := make([]BarcodeCount, 0, len(labels))
	for _, label := range labels {
		n := counts[label]
		pct := float64(n) / float64(total) * 100
		if minPercent > 0 && pct <= minPercent {
			continue
		}
		out = append(out, BarcodeCount{Barcode: label, Reads: n, Percent: pct})
	}
	return out, nil
}
