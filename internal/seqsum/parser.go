// Package seqsum parses Nanopore sequencing-summary tables and normalizes
// them into a single cleaned, time-ordered dataset.
package seqsum

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	xlog "github.com/nanoqc/nanoqc/internal/log"
)

var (
	// ErrNoFiles means the glob pattern matched nothing.
	ErrNoFiles = errors.New("no sequencing summary files found")
	// ErrNoReads means no valid reads survived parsing and filtering.
	ErrNoReads = errors.New("no valid reads found")
)

// Options control parsing behaviour.
type Options struct {
	// RunType forces 1D or 1D2 handling. Empty means autodetect from the
	// table header.
	RunType RunType

	// RunIDs restricts the dataset to the given run IDs and fixes their
	// order for the stitched timeline. Empty means keep every run and
	// order them by decreasing throughput.
	RunIDs []string
}

// rawFile is one parsed summary file before normalization.
type rawFile struct {
	path   string
	cols   map[string]int
	header []string
	rows   [][]string
}

// Load globs for summary files, parses them in parallel and returns the
// cleaned dataset. Column semantics across multiple files follow an inner
// join: only columns present in every file are kept.
func Load(ctx context.Context, pattern string, opts Options) (*Dataset, error) {
	logger := xlog.WithComponentFromContext(ctx, "seqsum")

	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w matching %q", ErrNoFiles, pattern)
	}
	sort.Strings(paths)
	logger.Info().
		Str("event", "seqsum.load_start").
		Str(xlog.FieldSourceGlob, pattern).
		Int("files", len(paths)).
		Msg("importing sequencing summary files")

	files := make([]*rawFile, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			rf, err := parseFile(gctx, path)
			if err != nil {
				return err
			}
			files[i] = rf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return build(ctx, files, opts)
}

// parseFile reads one tab-delimited summary file into memory.
func parseFile(ctx context.Context, path string) (*rawFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open summary file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<22)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read header of %s: %w", path, err)
		}
		return nil, fmt.Errorf("%w: %s is empty", ErrNoReads, path)
	}
	header := strings.Split(strings.TrimRight(sc.Text(), "\r\n"), "\t")
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	rf := &rawFile{path: path, cols: cols, header: header}
	n := 0
	for sc.Scan() {
		if n%4096 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			continue
		}
		rf.rows = append(rf.rows, strings.Split(line, "\t"))
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rf, nil
}

// sharedColumns returns the set of column names present in every file.
func sharedColumns(files []*rawFile) map[string]bool {
	shared := make(map[string]bool)
	for name := range files[0].cols {
		shared[name] = true
	}
	for _, rf := range files[1:] {
		for name := range shared {
			if _, ok := rf.cols[name]; !ok {
				delete(shared, name)
			}
		}
	}
	return shared
}

// detectRunType resolves the run type from options or the shared header.
func detectRunType(shared map[string]bool, forced RunType) (RunType, error) {
	switch forced {
	case RunType1D, RunType1D2:
		return forced, nil
	case "":
		if shared[colLen1D] {
			return RunType1D, nil
		}
		if shared[colLen1D2] {
			return RunType1D2, nil
		}
		return "", fmt.Errorf("cannot detect run type: neither %q nor %q column found", colLen1D, colLen1D2)
	default:
		return "", fmt.Errorf("invalid run type %q (must be %q or %q)", forced, RunType1D, RunType1D2)
	}
}

// build merges the parsed files and applies the cleanup pipeline.
func build(ctx context.Context, files []*rawFile, opts Options) (*Dataset, error) {
	logger := xlog.WithComponentFromContext(ctx, "seqsum")

	shared := sharedColumns(files)
	runType, err := detectRunType(shared, opts.RunType)
	if err != nil {
		return nil, err
	}

	lenCol, qualCol := colLen1D, colQual1D
	if runType == RunType1D2 {
		lenCol, qualCol = colLen1D2, colQual1D2
	}
	for _, required := range []string{colReadID, colRunID, colChannel, colStartTime, lenCol, qualCol} {
		if !shared[required] {
			return nil, fmt.Errorf("column %q not found in sequencing summary", required)
		}
	}
	hasCalibration := shared[colCalibration]
	hasBarcodes := shared[colBarcode]

	// Materialize rows, dropping any with missing or unparseable values.
	var dropped DropCounts
	var reads []read
	total := 0
	for _, rf := range files {
		total += len(rf.rows)
		for _, row := range rf.rows {
			r, ok := parseRow(rf, row, lenCol, qualCol, hasCalibration, hasBarcodes)
			if !ok {
				continue
			}
			reads = append(reads, r)
		}
	}
	dropped.Malformed = total - len(reads)
	logger.Debug().
		Str("event", "seqsum.rows_parsed").
		Int("total", total).
		Int("kept", len(reads)).
		Msg("rows parsed")
	if len(reads) == 0 {
		return nil, fmt.Errorf("%w in input", ErrNoReads)
	}

	// Reads matching the calibration strand are sequencing controls, not
	// sample output.
	if hasCalibration {
		kept := reads[:0]
		for _, r := range reads {
			if r.calibration == "filtered_out" || r.calibration == "no_match" {
				kept = append(kept, r)
			}
		}
		dropped.Calibration = len(reads) - len(kept)
		logger.Debug().
			Str("event", "seqsum.calibration_filter").
			Int("discarded", dropped.Calibration).
			Msg("calibration strand reads discarded")
		reads = kept
		if len(reads) == 0 {
			return nil, fmt.Errorf("%w after calibration strand filtering", ErrNoReads)
		}
	}

	// Zero-length reads carry no signal for any downstream statistic.
	kept := reads[:0]
	for _, r := range reads {
		if r.numBases > 0 {
			kept = append(kept, r)
		}
	}
	if n := len(reads) - len(kept); n > 0 {
		dropped.ZeroLength = n
		logger.Debug().
			Str("event", "seqsum.zero_len_filter").
			Int("discarded", n).
			Msg("zero length reads discarded")
	}
	reads = kept
	if len(reads) == 0 {
		return nil, fmt.Errorf("%w after zero length filtering", ErrNoReads)
	}

	runIDs := opts.RunIDs
	if len(runIDs) > 0 {
		want := make(map[string]bool, len(runIDs))
		for _, id := range runIDs {
			want[id] = true
		}
		kept := reads[:0]
		for _, r := range reads {
			if want[r.runID] {
				kept = append(kept, r)
			}
		}
		dropped.RunID = len(reads) - len(kept)
		reads = kept
		if len(reads) == 0 {
			return nil, fmt.Errorf("%w after run ID filtering", ErrNoReads)
		}
	} else {
		runIDs = orderByThroughput(reads)
	}

	offsets := applyOffsets(reads, runIDs)

	sort.SliceStable(reads, func(i, j int) bool {
		return reads[i].startTime < reads[j].startTime
	})

	ds := &Dataset{
		Reads:       make([]Read, len(reads)),
		RunType:     runType,
		Files:       len(files),
		Dropped:     dropped,
		RunIDs:      runIDs,
		RunOffsets:  offsets,
		HasBarcodes: hasBarcodes,
	}
	for i, r := range reads {
		ds.Reads[i] = Read{
			ReadID:     r.readID,
			RunID:      r.runID,
			Channel:    r.channel,
			StartTime:  r.startTime,
			NumBases:   r.numBases,
			MeanQscore: r.meanQscore,
			Barcode:    r.barcode,
		}
	}

	logger.Info().
		Str("event", "seqsum.load_done").
		Str("run_type", string(runType)).
		Int(xlog.FieldReads, len(ds.Reads)).
		Int("run_ids", len(runIDs)).
		Bool("barcodes", hasBarcodes).
		Msg("sequencing summary loaded")
	return ds, nil
}

// read is the internal row form carrying the calibration value until the
// control-read filter has run.
type read struct {
	readID      string
	runID       string
	channel     int
	startTime   float64
	numBases    float64
	meanQscore  float64
	calibration string
	barcode     string
}

func parseRow(rf *rawFile, row []string, lenCol, qualCol string, wantCalibration, wantBarcode bool) (read, bool) {
	field := func(name string) (string, bool) {
		i := rf.cols[name]
		if i >= len(row) {
			return "", false
		}
		v := strings.TrimSpace(row[i])
		if v == "" || v == "NA" || v == "NaN" || v == "nan" {
			return "", false
		}
		return v, true
	}

	var r read
	var ok bool
	if r.readID, ok = field(colReadID); !ok {
		return r, false
	}
	if r.runID, ok = field(colRunID); !ok {
		return r, false
	}
	ch, ok := field(colChannel)
	if !ok {
		return r, false
	}
	channel, err := strconv.Atoi(ch)
	if err != nil || channel < 1 {
		return r, false
	}
	r.channel = channel

	st, ok := field(colStartTime)
	if !ok {
		return r, false
	}
	if r.startTime, err = strconv.ParseFloat(st, 64); err != nil || math.IsNaN(r.startTime) {
		return r, false
	}
	nb, ok := field(lenCol)
	if !ok {
		return r, false
	}
	if r.numBases, err = strconv.ParseFloat(nb, 64); err != nil || math.IsNaN(r.numBases) {
		return r, false
	}
	mq, ok := field(qualCol)
	if !ok {
		return r, false
	}
	if r.meanQscore, err = strconv.ParseFloat(mq, 64); err != nil || math.IsNaN(r.meanQscore) {
		return r, false
	}

	if wantCalibration {
		if r.calibration, ok = field(colCalibration); !ok {
			return r, false
		}
	}
	if wantBarcode {
		if r.barcode, ok = field(colBarcode); !ok {
			return r, false
		}
	}
	return r, true
}

// orderByThroughput sorts run IDs by decreasing reads-per-second, assuming
// sequencing output declines over the lifetime of a flow cell. Ties keep
// first-seen order.
func orderByThroughput(reads []read) []string {
	type span struct {
		count    int
		min, max float64
	}
	spans := make(map[string]*span)
	var order []string
	for _, r := range reads {
		s, ok := spans[r.runID]
		if !ok {
			s = &span{min: r.startTime, max: r.startTime}
			spans[r.runID] = s
			order = append(order, r.runID)
		}
		s.count++
		if r.startTime < s.min {
			s.min = r.startTime
		}
		if r.startTime > s.max {
			s.max = r.startTime
		}
	}

	throughput := func(id string) float64 {
		s := spans[id]
		if s.max == s.min {
			return math.Inf(1)
		}
		return float64(s.count) / (s.max - s.min)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return throughput(order[i]) > throughput(order[j])
	})
	return order
}

// applyOffsets shifts each run's start times so that runs follow each other
// on one continuous timeline, in the given run ID order. Returns the offset
// applied per run.
func applyOffsets(reads []read, runIDs []string) map[string]float64 {
	offsets := make(map[string]float64, len(runIDs))
	var increment float64
	for _, id := range runIDs {
		maxVal := math.Inf(-1)
		for _, r := range reads {
			if r.runID == id && r.startTime > maxVal {
				maxVal = r.startTime
			}
		}
		if math.IsInf(maxVal, -1) {
			// Run ID requested by the caller but absent from the data.
			offsets[id] = increment
			continue
		}
		for i := range reads {
			if reads[i].runID == id {
				reads[i].startTime += increment
			}
		}
		offsets[id] = increment
		increment += maxVal + 1
	}
	return offsets
}
