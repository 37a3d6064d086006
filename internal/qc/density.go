package qc

import (
	"fmt"
	"math"

	"github.com/nanoqc/nanoqc/internal/stats"
)

// DefaultDensityBins is the default bin count of 1D densities.
const DefaultDensityBins = 200

// DefaultDensitySigma is the default Gaussian smoothing width of densities.
const DefaultDensitySigma = 2

// ReadLenDensity computes the read length distribution on a log scale.
func (a *Analyzer) ReadLenDensity(level Level, nbins int, sigma float64) (Density1D, error) {
	return a.density1D(level, "read_len", "log", nbins, sigma)
}

// ReadQualDensity computes the PHRED quality distribution on a linear scale.
func (a *Analyzer) ReadQualDensity(level Level, nbins int, sigma float64) (Density1D, error) {
	return a.density1D(level, "mean_qscore", "linear", nbins, sigma)
}

func (a *Analyzer) density1D(level Level, field, scale string, nbins int, sigma float64) (Density1D, error) {
	v, err := a.view(level)
	if err != nil {
		return Density1D{}, err
	}
	if nbins <= 1 {
		nbins = DefaultDensityBins
	}

	var data []float64
	switch field {
	case "read_len":
		data = lengths(v.sampled)
	case "mean_qscore":
		data = qscores(v.sampled)
	default:
		return Density1D{}, fmt.Errorf("unknown density field %q", field)
	}

	edges, err := binEdges(data, scale, nbins)
	if err != nil {
		return Density1D{}, err
	}

	counts := stats.Histogram(data, edges)
	smoothed := stats.GaussianFilter1D(counts, sigma)
	q := stats.Percentiles(data, []float64{10, 25, 50, 75, 90})
	yMax := stats.Max(smoothed)

	return Density1D{
		Field: field,
		Level: level,
		Scale: scale,
		X:     edges[1:],
		Y:     smoothed,
		Quantiles: Quantiles{
			P10:    q[0],
			P25:    q[1],
			Median: q[2],
			P75:    q[3],
			P90:    q[4],
		},
		YMax:      yMax,
		YRangeMax: yMax + yMax/6,
	}, nil
}

// LenQualDensity2D computes the joint distribution of read length (log
// bins) and quality (linear bins).
func (a *Analyzer) LenQualDensity2D(level Level, xNbins, yNbins int, sigma float64) (Density2D, error) {
	v, err := a.view(level)
	if err != nil {
		return Density2D{}, err
	}
	if xNbins <= 1 {
		xNbins = DefaultDensityBins
	}
	if yNbins <= 1 {
		yNbins = DefaultDensityBins / 2
	}

	lens := lengths(v.sampled)
	quals := qscores(v.sampled)

	xEdges, err := binEdges(lens, "log", xNbins)
	if err != nil {
		return Density2D{}, err
	}
	yEdges, err := binEdges(quals, "linear", yNbins)
	if err != nil {
		return Density2D{}, err
	}

	z := stats.Histogram2D(lens, quals, xEdges, yEdges)
	z = stats.GaussianFilter2D(z, sigma)

	zMin, zMax := math.Inf(1), math.Inf(-1)
	for _, row := range z {
		if m := stats.Min(row); m < zMin {
			zMin = m
		}
		if m := stats.Max(row); m > zMax {
			zMax = m
		}
	}

	rows := make([]FloatSeries, len(z))
	for i, row := range z {
		rows[i] = row
	}

	return Density2D{
		Level:       level,
		XField:      "read_len",
		YField:      "mean_qscore",
		X:           xEdges,
		Y:           yEdges,
		Z:           rows,
		XMedian:     stats.Median(lens),
		YMedian:     stats.Median(quals),
		ZMin:        zMin,
		ZMax:        zMax,
		ContourStep: (zMax - zMin) / 15,
	}, nil
}

// binEdges builds nbins bin edges covering data in log or linear space.
// The log form pads the top decade by 0.1 so the maximum lands inside the
// final bin rather than on its edge.
func binEdges(data []float64, scale string, nbins int) ([]float64, error) {
	min := stats.Min(data)
	max := stats.Max(data)
	if math.IsNaN(min) {
		return nil, fmt.Errorf("no data to bin")
	}
	switch scale {
	case "log":
		if min <= 0 {
			return nil, fmt.Errorf("log scale requires positive values, got min %v", min)
		}
		return stats.Logspace(math.Log10(min), math.Log10(max)+0.1, nbins), nil
	case "linear":
		if min == max {
			// Degenerate spread: a single bin still yields a usable
			// histogram.
			max = min + 1
		}
		return stats.Linspace(min, max, nbins), nil
	default:
		return nil, fmt.Errorf("unknown bin scale %q", scale)
	}
}
