// Package jobs orchestrates one full aggregation cycle: load summary
// files, analyze, assemble the report and write the artifacts.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	xlog "github.com/nanoqc/nanoqc/internal/log"

	"github.com/nanoqc/nanoqc/internal/config"
	"github.com/nanoqc/nanoqc/internal/metrics"
	"github.com/nanoqc/nanoqc/internal/qc"
	"github.com/nanoqc/nanoqc/internal/report"
	"github.com/nanoqc/nanoqc/internal/seqsum"
	"github.com/nanoqc/nanoqc/internal/store"
)

// Status summarizes the most recent aggregation.
type Status struct {
	LastRun  time.Time `json:"last_run"`
	ReportID string    `json:"report_id,omitempty"`
	Reads    int       `json:"reads"`
	Bases    int64     `json:"bases"`
	Error    string    `json:"error,omitempty"`
}

// Runner executes aggregation cycles against a fixed configuration.
// The store is optional; without one, reports only go to the artifact files.
type Runner struct {
	cfg config.Config
	db  *store.Store
}

// NewRunner returns a Runner. db may be nil.
func NewRunner(cfg config.Config, db *store.Store) *Runner {
	return &Runner{cfg: cfg, db: db}
}

// Run performs the complete cycle: parse summary files, compute every
// artifact, write the JSON (and optional XLSX) output and record the
// report in the history store.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	logger := xlog.WithComponentFromContext(ctx, "jobs")
	started := time.Now()
	logger.Info().
		Str("event", "aggregate.start").
		Str(xlog.FieldSourceGlob, r.cfg.Source).
		Msg("starting aggregation")

	rep, err := r.run(ctx, logger)
	metrics.RecordAggregation(time.Since(started).Seconds(), err)
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "aggregate.failed").
			Msg("aggregation failed")
		return nil, err
	}

	logger.Info().
		Str("event", "aggregate.success").
		Str("report_id", rep.ID).
		Int(xlog.FieldReads, rep.AllReads.Basecall.Reads).
		Int64(xlog.FieldBases, rep.AllReads.Basecall.Bases).
		Dur("elapsed", time.Since(started)).
		Msg("aggregation completed")
	return rep, nil
}

func (r *Runner) run(ctx context.Context, logger zerolog.Logger) (*report.Report, error) {
	ds, err := seqsum.Load(ctx, r.cfg.Source, r.cfg.LoadOptions())
	if err != nil {
		metrics.IncAggregationFailure("load")
		return nil, fmt.Errorf("load summary files: %w", err)
	}

	var bases int64
	for i := range ds.Reads {
		bases += int64(ds.Reads[i].NumBases)
	}
	metrics.RecordDataset(len(ds.Reads), bases, len(ds.RunIDs), ds.Files)
	metrics.IncReadsDropped("malformed", ds.Dropped.Malformed)
	metrics.IncReadsDropped("calibration", ds.Dropped.Calibration)
	metrics.IncReadsDropped("zero_length", ds.Dropped.ZeroLength)
	metrics.IncReadsDropped("run_id", ds.Dropped.RunID)

	analyzer, err := qc.New(ds, r.cfg.QC())
	if err != nil {
		metrics.IncAggregationFailure("analyze")
		return nil, fmt.Errorf("analyze: %w", err)
	}

	rep, err := report.Build(ctx, analyzer, r.cfg.Source, r.cfg.QC(), r.cfg.Params())
	if err != nil {
		metrics.IncAggregationFailure("report")
		return nil, fmt.Errorf("build report: %w", err)
	}

	if r.cfg.OutputJSON != "" {
		if err := report.WriteJSON(ctx, r.cfg.OutputJSON, rep); err != nil {
			metrics.IncAggregationFailure("write_json")
			return nil, fmt.Errorf("write json report: %w", err)
		}
		metrics.IncReportWritten("json")
	}

	if r.cfg.OutputXLSX != "" {
		if err := report.WriteXLSX(ctx, r.cfg.OutputXLSX, rep); err != nil {
			// The JSON artifact is already on disk; a workbook failure
			// should not void the whole cycle.
			metrics.IncAggregationFailure("write_xlsx")
			logger.Warn().
				Err(err).
				Str("event", "aggregate.xlsx_failed").
				Str(xlog.FieldPath, r.cfg.OutputXLSX).
				Msg("workbook export failed")
		} else {
			metrics.IncReportWritten("xlsx")
		}
	}

	if r.db != nil {
		if err := r.db.Save(ctx, rep); err != nil {
			metrics.IncAggregationFailure("store")
			return nil, fmt.Errorf("save report: %w", err)
		}
	}
	return rep, nil
}

// StatusOf converts a finished (or failed) run into a Status record.
func StatusOf(rep *report.Report, err error) Status {
	st := Status{LastRun: time.Now()}
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.ReportID = rep.ID
	st.Reads = rep.AllReads.Basecall.Reads
	st.Bases = rep.AllReads.Basecall.Bases
	return st
}
