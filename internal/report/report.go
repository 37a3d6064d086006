// Package report assembles the full set of QC artifacts into a single
// renderer-agnostic document and writes it out as JSON or XLSX.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	xlog "github.com/nanoqc/nanoqc/internal/log"
	"github.com/nanoqc/nanoqc/internal/qc"
	"github.com/nanoqc/nanoqc/internal/seqsum"
	"github.com/nanoqc/nanoqc/internal/version"
)

// Tool identifies the generator of a report.
type Tool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Report is the complete QC document for one aggregation run.
type Report struct {
	ID        string    `json:"id"`
	Tool      Tool      `json:"tool"`
	CreatedAt time.Time `json:"created_at"`

	Source      string         `json:"source"`
	RunType     seqsum.RunType `json:"run_type"`
	MinPassQual float64        `json:"min_pass_qual"`
	SampleSize  int            `json:"sample_size,omitempty"`

	AllReads  qc.DatasetStats `json:"all_reads"`
	PassReads qc.DatasetStats `json:"pass_reads"`

	Summary        map[qc.Level][]qc.SummaryRow   `json:"summary"`
	RunIDSummary   map[qc.Level][]qc.SummaryRow   `json:"run_id_summary,omitempty"`
	BarcodeSummary map[qc.Level][]qc.SummaryRow   `json:"barcode_summary,omitempty"`
	LenDensity     map[qc.Level]qc.Density1D      `json:"len_density"`
	QualDensity    map[qc.Level]qc.Density1D      `json:"qual_density"`
	LenQualDensity map[qc.Level]qc.Density2D      `json:"len_qual_density"`
	Output         []qc.OutputOverTime            `json:"output_over_time"`
	LenOverTime    map[qc.Level]qc.FieldOverTime  `json:"len_over_time"`
	QualOverTime   map[qc.Level]qc.FieldOverTime  `json:"qual_over_time"`
	Barcodes       map[qc.Level][]qc.BarcodeCount `json:"barcodes,omitempty"`
	Activity       []qc.ChannelActivity           `json:"channel_activity"`
}

// Params tunes artifact resolution. Zero values fall back to the
// aggregation defaults.
type Params struct {
	DensityBins      int
	DensitySigma     float64
	TimeBins         int
	TimeSigma        float64
	ActivityTimeBins int
	ActivitySigma    float64
	MinBarcodePct    float64
}

// DefaultParams returns the artifact resolution defaults.
func DefaultParams() Params {
	return Params{
		DensityBins:      qc.DefaultDensityBins,
		DensitySigma:     qc.DefaultDensitySigma,
		TimeBins:         qc.DefaultTimeBins,
		TimeSigma:        1,
		ActivityTimeBins: qc.DefaultActivityTimeBins,
		ActivitySigma:    1,
		MinBarcodePct:    qc.DefaultMinBarcodePct,
	}
}

var levels = []qc.Level{qc.LevelAll, qc.LevelPass}

// Build runs every aggregation and assembles the report document.
func Build(ctx context.Context, a *qc.Analyzer, source string, cfg qc.Config, p Params) (*Report, error) {
	logger := xlog.WithComponentFromContext(ctx, "report")
	started := time.Now()

	r := &Report{
		ID:        uuid.NewString(),
		Tool:      Tool{Name: "nanoqc", Version: version.Version},
		CreatedAt: time.Now().UTC(),

		Source:      source,
		RunType:     a.Dataset().RunType,
		MinPassQual: cfg.MinPassQual,
		SampleSize:  cfg.SampleSize,

		Summary:        map[qc.Level][]qc.SummaryRow{},
		LenDensity:     map[qc.Level]qc.Density1D{},
		QualDensity:    map[qc.Level]qc.Density1D{},
		LenQualDensity: map[qc.Level]qc.Density2D{},
		LenOverTime:    map[qc.Level]qc.FieldOverTime{},
		QualOverTime:   map[qc.Level]qc.FieldOverTime{},
	}

	var err error
	if r.AllReads, err = a.Stats(qc.LevelAll); err != nil {
		return nil, fmt.Errorf("stats all: %w", err)
	}
	if r.PassReads, err = a.Stats(qc.LevelPass); err != nil {
		return nil, fmt.Errorf("stats pass: %w", err)
	}

	multiRun := len(a.Dataset().RunIDs) > 1
	if multiRun {
		r.RunIDSummary = map[qc.Level][]qc.SummaryRow{}
	}
	if a.HasBarcodes() {
		r.BarcodeSummary = map[qc.Level][]qc.SummaryRow{}
		r.Barcodes = map[qc.Level][]qc.BarcodeCount{}
	}

	for _, level := range levels {
		if r.Summary[level], err = a.Summary(level, qc.GroupNone); err != nil {
			return nil, fmt.Errorf("summary %s: %w", level, err)
		}
		if multiRun {
			if r.RunIDSummary[level], err = a.Summary(level, qc.GroupRunID); err != nil {
				return nil, fmt.Errorf("run id summary %s: %w", level, err)
			}
		}
		if a.HasBarcodes() {
			if r.BarcodeSummary[level], err = a.Summary(level, qc.GroupBarcode); err != nil {
				return nil, fmt.Errorf("barcode summary %s: %w", level, err)
			}
			if r.Barcodes[level], err = a.BarcodeCounts(level, p.MinBarcodePct); err != nil {
				return nil, fmt.Errorf("barcode counts %s: %w", level, err)
			}
		}

		if r.LenDensity[level], err = a.ReadLenDensity(level, p.DensityBins, p.DensitySigma); err != nil {
			return nil, fmt.Errorf("length density %s: %w", level, err)
		}
		if r.QualDensity[level], err = a.ReadQualDensity(level, p.DensityBins, p.DensitySigma); err != nil {
			return nil, fmt.Errorf("quality density %s: %w", level, err)
		}
		if r.LenQualDensity[level], err = a.LenQualDensity2D(level, p.DensityBins, p.DensityBins/2, p.DensitySigma); err != nil {
			return nil, fmt.Errorf("2d density %s: %w", level, err)
		}
		if r.LenOverTime[level], err = a.LenOverTime(level, p.TimeSigma, p.TimeBins); err != nil {
			return nil, fmt.Errorf("length over time %s: %w", level, err)
		}
		if r.QualOverTime[level], err = a.QualOverTime(level, p.TimeSigma, p.TimeBins); err != nil {
			return nil, fmt.Errorf("quality over time %s: %w", level, err)
		}

		for _, count := range []qc.CountLevel{qc.CountReads, qc.CountBases} {
			o, err := a.OutputOverTime(level, count, p.TimeBins)
			if err != nil {
				return nil, fmt.Errorf("output over time %s/%s: %w", level, count, err)
			}
			r.Output = append(r.Output, o)

			act, err := a.ChannelActivity(level, count, p.ActivityTimeBins, p.ActivitySigma)
			if err != nil {
				return nil, fmt.Errorf("channel activity %s/%s: %w", level, count, err)
			}
			r.Activity = append(r.Activity, act)
		}
	}

	logger.Info().
		Str("event", "report.built").
		Str("report_id", r.ID).
		Int(xlog.FieldReads, r.AllReads.Basecall.Reads).
		Int64(xlog.FieldBases, r.AllReads.Basecall.Bases).
		Dur("elapsed", time.Since(started)).
		Msg("report assembled")
	return r, nil
}
