// Package stats implements the numeric kernels used by the QC aggregation
// layer: bin-edge generation, histogramming, quantiles, N50 and Gaussian
// smoothing. All functions operate on plain float64 slices and never mutate
// their inputs.
package stats

import (
	"math"
	"sort"
)

// Linspace returns num evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, num int) []float64 {
	if num <= 0 {
		return nil
	}
	if num == 1 {
		return []float64{start}
	}
	out := make([]float64, num)
	step := (stop - start) / float64(num-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[num-1] = stop
	return out
}

// Logspace returns num values spaced evenly on a log10 scale between
// 10^start and 10^stop inclusive.
func Logspace(start, stop float64, num int) []float64 {
	out := Linspace(start, stop, num)
	for i, v := range out {
		out[i] = math.Pow(10, v)
	}
	return out
}

// Digitize returns, for each value, the index of the bin it falls into.
// Bin edges must be monotonically increasing. With right=true a value x is
// assigned index i such that bins[i-1] < x <= bins[i]; values above the last
// edge map to len(bins).
func Digitize(values, bins []float64, right bool) []int {
	out := make([]int, len(values))
	for i, x := range values {
		if right {
			out[i] = sort.SearchFloat64s(bins, x)
		} else {
			out[i] = sort.Search(len(bins), func(j int) bool { return bins[j] > x })
		}
	}
	return out
}

// Bincount counts occurrences of each index. When weights is non-nil the
// occurrences are weighted. The result has at least minLength entries.
func Bincount(idx []int, weights []float64, minLength int) []float64 {
	n := minLength
	for _, i := range idx {
		if i+1 > n {
			n = i + 1
		}
	}
	out := make([]float64, n)
	for k, i := range idx {
		if i < 0 {
			continue
		}
		if weights != nil {
			out[i] += weights[k]
		} else {
			out[i]++
		}
	}
	return out
}

// CumSum returns the cumulative sum of values.
func CumSum(values []float64) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		out[i] = sum
	}
	return out
}

// Sum returns the sum of values.
func Sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// Min returns the smallest value, or NaN for an empty slice.
func Min(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest value, or NaN for an empty slice.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Ptp returns the peak-to-peak span (max - min), or 0 for an empty slice.
func Ptp(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Max(values) - Min(values)
}

// Percentile computes the q-th percentile (0..100) using linear
// interpolation between closest ranks. Returns NaN for empty input.
func Percentile(values []float64, q float64) float64 {
	return Percentiles(values, []float64{q})[0]
}

// Percentiles computes several percentiles of values in one pass, sorting
// the data only once.
func Percentiles(values []float64, qs []float64) []float64 {
	out := make([]float64, len(qs))
	if len(values) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	for i, q := range qs {
		pos := q / 100 * float64(n-1)
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		frac := pos - float64(lo)
		out[i] = sorted[lo] + frac*(sorted[hi]-sorted[lo])
	}
	return out
}

// Median returns the 50th percentile of values.
func Median(values []float64) float64 {
	return Percentile(values, 50)
}

// N50 returns the length L such that reads of length >= L hold at least
// half of the total bases. Returns 0 for empty input.
func N50(lengths []float64) float64 {
	if len(lengths) == 0 {
		return 0
	}
	sorted := make([]float64, len(lengths))
	copy(sorted, lengths)
	sort.Float64s(sorted)

	half := Sum(sorted) / 2
	var cum float64
	for _, l := range sorted {
		cum += l
		if cum >= half {
			return l
		}
	}
	return sorted[len(sorted)-1]
}

// Histogram counts values into the bins described by the given edges.
// The result has len(edges)-1 entries; each bin is half-open on the right
// except the last, which includes its right edge. Values outside the edge
// range are ignored.
func Histogram(values, edges []float64) []float64 {
	if len(edges) < 2 {
		return nil
	}
	counts := make([]float64, len(edges)-1)
	last := len(edges) - 1
	for _, x := range values {
		if x < edges[0] || x > edges[last] {
			continue
		}
		// Index of the last edge <= x.
		i := sort.Search(len(edges), func(j int) bool { return edges[j] > x }) - 1
		if i >= last {
			i = last - 1
		}
		counts[i]++
	}
	return counts
}

// Histogram2D bins (x, y) pairs over the cartesian product of the given
// edges. The result is indexed [yBin][xBin] with len(yEdges)-1 rows.
func Histogram2D(xs, ys, xEdges, yEdges []float64) [][]float64 {
	if len(xEdges) < 2 || len(yEdges) < 2 {
		return nil
	}
	rows := len(yEdges) - 1
	cols := len(xEdges) - 1
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	lastX := len(xEdges) - 1
	lastY := len(yEdges) - 1
	for k := range xs {
		x, y := xs[k], ys[k]
		if x < xEdges[0] || x > xEdges[lastX] || y < yEdges[0] || y > yEdges[lastY] {
			continue
		}
		xi := sort.Search(len(xEdges), func(j int) bool { return xEdges[j] > x }) - 1
		if xi >= lastX {
			xi = lastX - 1
		}
		yi := sort.Search(len(yEdges), func(j int) bool { return yEdges[j] > y }) - 1
		if yi >= lastY {
			yi = lastY - 1
		}
		out[yi][xi]++
	}
	return out
}
