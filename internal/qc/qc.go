// Package qc turns a cleaned sequencing-summary dataset into the numeric
// artifacts a report renderer consumes: summary tables, 1D/2D densities,
// time series, barcode counts and channel activity matrices.
package qc

import (
	"fmt"

	"github.com/nanoqc/nanoqc/internal/seqsum"
	"github.com/nanoqc/nanoqc/internal/stats"
)

// DefaultMinPassQual is the PHRED threshold separating pass from fail reads.
const DefaultMinPassQual = 7

// DefaultSampleSize bounds the number of reads used for density and
// time-series artifacts. Counts are rescaled by the sampling factor.
const DefaultSampleSize = 100000

// sampleSeed fixes the downsampling draw so repeated aggregations of the
// same run produce identical artifacts.
const sampleSeed = 42

// minionChannels and promethionChannels are the flow-cell channel counts
// used for the activity matrix.
const (
	minionChannels     = 512
	promethionChannels = 3000
)

// Level selects which read population an artifact is computed over.
type Level string

const (
	// LevelAll covers every read in the dataset.
	LevelAll Level = "all"
	// LevelPass covers reads at or above the pass quality threshold.
	LevelPass Level = "pass"
)

// CountLevel selects whether time-binned artifacts count reads or bases.
type CountLevel string

const (
	// CountReads counts one per read.
	CountReads CountLevel = "reads"
	// CountBases weights each read by its basecalled length.
	CountBases CountLevel = "bases"
)

// Config holds aggregation parameters.
type Config struct {
	// MinPassQual is the minimum mean PHRED score for a pass read.
	MinPassQual float64
	// SampleSize caps reads used in density/time-series artifacts.
	// Zero disables downsampling.
	SampleSize int
}

// DefaultConfig returns the aggregation defaults.
func DefaultConfig() Config {
	return Config{
		MinPassQual: DefaultMinPassQual,
		SampleSize:  DefaultSampleSize,
	}
}

// view is one read population with its deterministic downsample.
type view struct {
	reads   []seqsum.Read
	sampled []seqsum.Read
	scale   float64
}

func newView(reads []seqsum.Read, sampleSize int) view {
	v := view{reads: reads, sampled: reads, scale: 1}
	if sampleSize > 0 && len(reads) > sampleSize {
		idx := stats.SampleIndices(len(reads), sampleSize, sampleSeed)
		sampled := make([]seqsum.Read, len(idx))
		for i, j := range idx {
			sampled[i] = reads[j]
		}
		v.sampled = sampled
		v.scale = float64(len(reads)) / float64(sampleSize)
	}
	return v
}

// Analyzer computes QC artifacts over a dataset.
type Analyzer struct {
	ds   *seqsum.Dataset
	cfg  Config
	all  view
	pass view
}

// New builds an analyzer, splitting the dataset into all/pass populations
// and preparing the deterministic downsamples.
func New(ds *seqsum.Dataset, cfg Config) (*Analyzer, error) {
	if ds == nil || len(ds.Reads) == 0 {
		return nil, fmt.Errorf("empty dataset")
	}
	if cfg.MinPassQual == 0 {
		cfg.MinPassQual = DefaultMinPassQual
	}
	if cfg.SampleSize < 0 {
		return nil, fmt.Errorf("sample size must be >= 0, got %d", cfg.SampleSize)
	}

	var passReads []seqsum.Read
	for _, r := range ds.Reads {
		if r.MeanQscore >= cfg.MinPassQual {
			passReads = append(passReads, r)
		}
	}

	return &Analyzer{
		ds:   ds,
		cfg:  cfg,
		all:  newView(ds.Reads, cfg.SampleSize),
		pass: newView(passReads, cfg.SampleSize),
	}, nil
}

// Dataset returns the underlying parsed dataset.
func (a *Analyzer) Dataset() *seqsum.Dataset { return a.ds }

// HasBarcodes reports whether barcode information is available.
func (a *Analyzer) HasBarcodes() bool { return a.ds.HasBarcodes }

// IsPromethION reports whether channel ids exceed the MinION layout.
func (a *Analyzer) IsPromethION() bool { return a.ds.MaxChannel() > minionChannels }

// ChannelCount returns the flow-cell channel count for the activity matrix.
func (a *Analyzer) ChannelCount() int {
	if a.IsPromethION() {
		return promethionChannels
	}
	return minionChannels
}

func (a *Analyzer) view(level Level) (view, error) {
	switch level {
	case LevelAll:
		return a.all, nil
	case LevelPass:
		return a.pass, nil
	default:
		return view{}, fmt.Errorf("unknown level %q", level)
	}
}

func lengths(reads []seqsum.Read) []float64 {
	out := make([]float64, len(reads))
	for i, r := range reads {
		out[i] = r.NumBases
	}
	return out
}

func qscores(reads []seqsum.Read) []float64 {
	out := make([]float64, len(reads))
	for i, r := range reads {
		out[i] = r.MeanQscore
	}
	return out
}

func hours(reads []seqsum.Read) []float64 {
	out := make([]float64, len(reads))
	for i, r := range reads {
		out[i] = r.StartTime / 3600
	}
	return out
}
