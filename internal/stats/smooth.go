package stats

import "math"

// gaussianKernel builds a normalized Gaussian kernel with radius
// int(truncate*sigma + 0.5) on each side, matching scipy.ndimage with its
// default truncation of 4 standard deviations.
func gaussianKernel(sigma float64) []float64 {
	const truncate = 4.0
	radius := int(truncate*sigma + 0.5)
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// reflectIndex maps an out-of-range index into [0, n) using half-sample
// symmetric reflection (scipy mode "reflect": d c b a | a b c d | d c b a).
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// GaussianFilter1D smooths values with a Gaussian kernel of the given
// standard deviation. A sigma <= 0 returns a copy of the input unchanged.
func GaussianFilter1D(values []float64, sigma float64) []float64 {
	out := make([]float64, len(values))
	if sigma <= 0 || len(values) == 0 {
		copy(out, values)
		return out
	}
	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2
	n := len(values)
	for i := range values {
		var acc float64
		for k := -radius; k <= radius; k++ {
			acc += kernel[k+radius] * values[reflectIndex(i+k, n)]
		}
		out[i] = acc
	}
	return out
}

// GaussianFilter2D smooths a matrix with a Gaussian kernel applied
// separably along both axes.
func GaussianFilter2D(z [][]float64, sigma float64) [][]float64 {
	out := make([][]float64, len(z))
	for i, row := range z {
		out[i] = GaussianFilter1D(row, sigma)
	}
	return GaussianFilterColumns(out, sigma)
}

// GaussianFilterColumns smooths each column of a matrix along the row axis.
// Used for time-axis smoothing of per-channel series.
func GaussianFilterColumns(z [][]float64, sigma float64) [][]float64 {
	rows := len(z)
	out := make([][]float64, rows)
	if rows == 0 {
		return out
	}
	cols := len(z[0])
	for i := range out {
		out[i] = make([]float64, cols)
	}
	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			column[i] = z[i][j]
		}
		smoothed := GaussianFilter1D(column, sigma)
		for i := 0; i < rows; i++ {
			out[i][j] = smoothed[i]
		}
	}
	return out
}
