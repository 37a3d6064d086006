package qc

import (
	"fmt"
	"math"

	"github.com/nanoqc/nanoqc/internal/stats"
)

// DefaultTimeBins is the default number of time bins for temporal artifacts.
const DefaultTimeBins = 500

// intervalSigma smooths the per-bin yield trace.
const intervalSigma = 1

// milestonePercents are the output fractions reported as milestones.
var milestonePercents = []int{50, 75, 90, 99, 100}

// OutputOverTime computes cumulative and per-interval sequencing yield
// across the experiment timeline.
func (a *Analyzer) OutputOverTime(level Level, count CountLevel, timeBins int) (OutputOverTime, error) {
	v, err := a.view(level)
	if err != nil {
		return OutputOverTime{}, err
	}
	if timeBins <= 1 {
		timeBins = DefaultTimeBins
	}

	t := hours(v.sampled)
	x := stats.Linspace(stats.Min(t), stats.Max(t), timeBins)
	idx := stats.Digitize(t, x, true)

	var y []float64
	switch count {
	case CountReads:
		y = stats.Bincount(idx, nil, len(x))
	case CountBases:
		y = stats.Bincount(idx, lengths(v.sampled), len(x))
	default:
		return OutputOverTime{}, fmt.Errorf("unknown count level %q", count)
	}
	y = y[:len(x)]

	// Rescale for downsampling before accumulating.
	for i := range y {
		y[i] *= v.scale
	}

	cum := stats.CumSum(y)
	total := cum[len(cum)-1]

	interval := stats.GaussianFilter1D(y, intervalSigma)
	if m := stats.Max(interval); m > 0 {
		for i := range interval {
			interval[i] = interval[i] * total / m
		}
	}

	milestones := make([]Milestone, 0, len(milestonePercents))
	for _, pct := range milestonePercents {
		target := total * float64(pct) / 100
		best, bestDist := 0, math.Inf(1)
		for i, c := range cum {
			if d := math.Abs(c - target); d < bestDist {
				best, bestDist = i, d
			}
		}
		milestones = append(milestones, Milestone{
			Percent:   pct,
			TimeHours: x[best],
			Amount:    cum[best],
		})
	}

	return OutputOverTime{
		Level:      level,
		Count:      count,
		Time:       x,
		Cumulative: cum,
		Interval:   interval,
		Total:      total,
		Milestones: milestones,
	}, nil
}

// LenOverTime tracks the read length distribution per time bin.
func (a *Analyzer) LenOverTime(level Level, sigma float64, timeBins int) (FieldOverTime, error) {
	return a.fieldOverTime(level, "read_len", sigma, timeBins)
}

// QualOverTime tracks the read quality distribution per time bin.
func (a *Analyzer) QualOverTime(level Level, sigma float64, timeBins int) (FieldOverTime, error) {
	return a.fieldOverTime(level, "mean_qscore", sigma, timeBins)
}

func (a *Analyzer) fieldOverTime(level Level, field string, sigma float64, timeBins int) (FieldOverTime, error) {
	v, err := a.view(level)
	if err != nil {
		return FieldOverTime{}, err
	}
	if timeBins <= 1 {
		timeBins = DefaultTimeBins
	}

	var data []float64
	switch field {
	case "read_len":
		data = lengths(v.sampled)
	case "mean_qscore":
		data = qscores(v.sampled)
	default:
		return FieldOverTime{}, fmt.Errorf("unknown field %q", field)
	}

	t := hours(v.sampled)
	x := stats.Linspace(stats.Min(t), stats.Max(t), timeBins)
	idx := stats.Digitize(t, x, true)

	// Collect per-bin values.
	binned := make([][]float64, len(x))
	for k, i := range idx {
		if i >= len(x) {
			i = len(x) - 1
		}
		binned[i] = append(binned[i], data[k])
	}

	series := FieldOverTime{
		Level:  level,
		Field:  field,
		Time:   x,
		Min:    make(FloatSeries, len(x)),
		Max:    make(FloatSeries, len(x)),
		Q1:     make(FloatSeries, len(x)),
		Q3:     make(FloatSeries, len(x)),
		Median: make(FloatSeries, len(x)),
	}
	for i, vals := range binned {
		p := stats.Percentiles(vals, []float64{0, 100, 25, 75, 50})
		series.Min[i] = p[0]
		series.Max[i] = p[1]
		series.Q1[i] = p[2]
		series.Q3[i] = p[3]
		series.Median[i] = p[4]
	}

	// Smoothing runs across bins; NaN gaps propagate into their kernel
	// neighbourhood exactly like the unsmoothed gaps they come from.
	if sigma > 0 {
		series.Min = stats.GaussianFilter1D(series.Min, sigma)
		series.Max = stats.GaussianFilter1D(series.Max, sigma)
		series.Q1 = stats.GaussianFilter1D(series.Q1, sigma)
		series.Q3 = stats.GaussianFilter1D(series.Q3, sigma)
		series.Median = stats.GaussianFilter1D(series.Median, sigma)
	}
	return series, nil
}
