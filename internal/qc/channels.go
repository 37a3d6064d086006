package qc

import (
	"fmt"

	"github.com/nanoqc/nanoqc/internal/stats"
)

// DefaultActivityTimeBins is the default temporal resolution of the
// channel activity matrix.
const DefaultActivityTimeBins = 100

// ChannelActivity computes the per-channel output matrix over time.
// Cells start at one rather than zero so renderers can apply a log color
// scale without masking.
func (a *Analyzer) ChannelActivity(level Level, count CountLevel, timeBins int, sigma float64) (ChannelActivity, error) {
	v, err := a.view(level)
	if err != nil {
		return ChannelActivity{}, err
	}
	if count != CountReads && count != CountBases {
		return ChannelActivity{}, fmt.Errorf("unknown count level %q", count)
	}
	if timeBins <= 1 {
		timeBins = DefaultActivityTimeBins
	}
	nChannels := a.ChannelCount()

	t := hours(v.sampled)
	bins := stats.Linspace(stats.Min(t), stats.Max(t), timeBins)
	idx := stats.Digitize(t, bins, true)

	z := make([][]float64, len(bins))
	for i := range z {
		z[i] = make([]float64, nChannels)
		for j := range z[i] {
			z[i][j] = 1
		}
	}
	for k, r := range v.sampled {
		i := idx[k]
		if i >= len(bins) {
			i = len(bins) - 1
		}
		ch := r.Channel - 1
		if ch < 0 || ch >= nChannels {
			continue
		}
		switch count {
		case CountBases:
			z[i][ch] += r.NumBases
		case CountReads:
			z[i][ch]++
		}
	}

	for i := range z {
		for j := range z[i] {
			z[i][j] *= v.scale
		}
	}

	if sigma > 0 {
		z = stats.GaussianFilterColumns(z, sigma)
	}

	rows := make([]FloatSeries, len(z))
	for i, row := range z {
		rows[i] = row
	}
	return ChannelActivity{
		Level:    level,
		Count:    count,
		Channels: nChannels,
		Time:     bins,
		Z:        rows,
	}, nil
}
