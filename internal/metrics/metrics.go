// Package metrics exposes Prometheus instrumentation for the aggregation
// pipeline and the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	readsParsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nanoqc_reads_parsed",
		Help: "Number of reads retained after filtering (last aggregation)",
	})

	readsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanoqc_reads_dropped_total",
		Help: "Reads dropped during parsing by reason",
	}, []string{"reason"}) // reason=malformed|calibration|zero_length|run_id

	basesParsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nanoqc_bases_parsed",
		Help: "Number of bases retained after filtering (last aggregation)",
	})

	runsAggregated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nanoqc_runs_aggregated",
		Help: "Number of run IDs in the last aggregation",
	})

	sourceFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nanoqc_source_files",
		Help: "Number of summary files matched by the source glob (last aggregation)",
	})

	aggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanoqc_aggregations_total",
		Help: "Aggregation runs by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	aggregationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanoqc_aggregation_failures_total",
		Help: "Aggregation failures by stage",
	}, []string{"stage"}) // stage=load|analyze|report|write_json|write_xlsx|store

	aggregationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nanoqc_aggregation_duration_seconds",
		Help:    "Wall time of a full aggregation run",
		Buckets: prometheus.DefBuckets,
	})

	// Artifact metrics
	reportsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanoqc_reports_written_total",
		Help: "Report artifacts written by format",
	}, []string{"format"}) // format=json|xlsx

	// Watcher metrics
	watchEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nanoqc_watch_events_total",
		Help: "Filesystem events observed on the source glob",
	})

	watchRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nanoqc_watch_refreshes_total",
		Help: "Re-aggregations triggered by the watcher after debouncing",
	})
)

func RecordDataset(reads int, bases int64, runs, files int) {
	readsParsed.Set(float64(reads))
	basesParsed.Set(float64(bases))
	runsAggregated.Set(float64(runs))
	sourceFiles.Set(float64(files))
}

func IncReadsDropped(reason string, n int) {
	readsDropped.WithLabelValues(reason).Add(float64(n))
}

func RecordAggregation(duration float64, err error) {
	aggregationDurationSeconds.Observe(duration)
	if err != nil {
		aggregationsTotal.WithLabelValues("failure").Inc()
		return
	}
	aggregationsTotal.WithLabelValues("success").Inc()
}

func IncAggregationFailure(stage string) {
	aggregationFailuresTotal.WithLabelValues(stage).Inc()
}

func IncReportWritten(format string) { reportsWritten.WithLabelValues(format).Inc() }

func IncWatchEvent()   { watchEventsTotal.Inc() }
func IncWatchRefresh() { watchRefreshesTotal.Inc() }
