package report

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	xlog "github.com/nanoqc/nanoqc/internal/log"
	"github.com/nanoqc/nanoqc/internal/qc"
)

// WriteXLSX exports the tabular parts of a report as a workbook: one
// summary sheet, per-group sheets when available and the barcode tally.
// Dense matrix artifacts (densities, channel activity) stay JSON-only.
func WriteXLSX(ctx context.Context, path string, r *Report) error {
	logger := xlog.FromContext(ctx)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Debug().Err(err).Msg("close workbook")
		}
	}()

	if err := writeStatsSheet(f, r); err != nil {
		return err
	}
	if err := writeSummarySheet(f, "Summary", r.Summary); err != nil {
		return err
	}
	if r.RunIDSummary != nil {
		if err := writeSummarySheet(f, "Run ID Summary", r.RunIDSummary); err != nil {
			return err
		}
	}
	if r.BarcodeSummary != nil {
		if err := writeSummarySheet(f, "Barcode Summary", r.BarcodeSummary); err != nil {
			return err
		}
		if err := writeBarcodeSheet(f, r.Barcodes); err != nil {
			return err
		}
	}

	// The default sheet is replaced by the stats sheet.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	logger.Info().
		Str("event", "report.xlsx_written").
		Str(xlog.FieldPath, path).
		Msg("workbook written")
	return nil
}

func writeStatsSheet(f *excelize.File, r *Report) error {
	const sheet = "Run Stats"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	rows := [][]any{
		{"Generated by", r.Tool.Name + " " + r.Tool.Version},
		{"Date", r.CreatedAt.Format("2006-01-02 15:04:05 UTC")},
		{"Source", r.Source},
		{"Run type", string(r.RunType)},
		{"Pass quality threshold", r.MinPassQual},
		{},
		{"", "All Reads", "Pass Reads"},
		{"Reads", r.AllReads.Basecall.Reads, r.PassReads.Basecall.Reads},
		{"Bases", r.AllReads.Basecall.Bases, r.PassReads.Basecall.Bases},
		{"Median read length", r.AllReads.Basecall.MedianLength(), r.PassReads.Basecall.MedianLength()},
		{"N50 length", r.AllReads.Basecall.N50, r.PassReads.Basecall.N50},
		{"Median read quality", r.AllReads.Basecall.MedianQscore(), r.PassReads.Basecall.MedianQscore()},
		{"Active channels", r.AllReads.Run.ActiveChannels, r.PassReads.Run.ActiveChannels},
		{"Run duration (h)", r.AllReads.Run.DurationHours, r.PassReads.Run.DurationHours},
	}
	return writeRows(f, sheet, rows)
}

func writeSummarySheet(f *excelize.File, sheet string, tables map[qc.Level][]qc.SummaryRow) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	rows := [][]any{{
		"Level", "Group", "Reads", "Bases", "Med Read Length",
		"N50 Length", "Med Read Quality", "Active Channels", "Run Duration (h)",
	}}
	for _, level := range []qc.Level{qc.LevelAll, qc.LevelPass} {
		for _, row := range tables[level] {
			rows = append(rows, []any{
				string(level), row.Label, row.Reads, row.Bases, row.MedianLength,
				row.N50, row.MedianQscore, row.ActiveChannels, row.DurationHours,
			})
		}
	}
	return writeRows(f, sheet, rows)
}

func writeBarcodeSheet(f *excelize.File, tables map[qc.Level][]qc.BarcodeCount) error {
	const sheet = "Barcodes"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	rows := [][]any{{"Level", "Barcode", "Reads", "Percent"}}
	for _, level := range []qc.Level{qc.LevelAll, qc.LevelPass} {
		for _, bc := range tables[level] {
			rows = append(rows, []any{string(level), bc.Barcode, bc.Reads, bc.Percent})
		}
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}
