// Package exporter persists the processed dataset: the published CSV
// artifact, its dated archival copy and an optional Excel export.
package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

// CSVWriter writes the published dataset and its archival copy.
type CSVWriter struct {
	outputFile string
	archiveDir string
	logger     *slog.Logger
}

// NewCSVWriter creates a writer for the given output artifact and archive
// location.
func NewCSVWriter(outputFile, archiveDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{outputFile: outputFile, archiveDir: archiveDir, logger: logger}
}

// Write publishes the dataset. The artifact is written to a temporary file
// and renamed into place so a failed run never leaves a partial output, and
// one dated copy is placed in the archive, keyed by the data's maximum
// calculation date. The archive key comes from the data, not wall-clock
// time, so re-running on identical input reproduces identical artifacts.
func (w *CSVWriter) Write(ctx context.Context, rows []domain.Row) error {
	if len(rows) == 0 {
		return kpierrors.New(kpierrors.CodeSink, "export", "refusing to publish an empty dataset")
	}

	if err := writeCSVFile(w.outputFile, rows); err != nil {
		return kpierrors.Wrap(err, kpierrors.CodeSink, "export", "write output artifact")
	}

	archivePath := filepath.Join(w.archiveDir, archiveName(w.outputFile, maxDate(rows)))
	if err := writeCSVFile(archivePath, rows); err != nil {
		return kpierrors.Wrap(err, kpierrors.CodeSink, "export", "write archive copy")
	}

	w.logger.InfoContext(ctx, "published dataset",
		slog.String("output", w.outputFile),
		slog.String("archive", archivePath),
		slog.Int("rows", len(rows)))
	return nil
}

// archiveName derives the dated archive file name, e.g.
// preprocessed_results_2024-03.csv.
func archiveName(outputFile string, maxDate time.Time) string {
	base := filepath.Base(outputFile)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	return fmt.Sprintf("%s_%s%s", stem, maxDate.Format("2006-01"), ext)
}

func maxDate(rows []domain.Row) time.Time {
	var max time.Time
	for _, row := range rows {
		if row.CalculationDate.After(max) {
			max = row.CalculationDate
		}
	}
	return max
}

func writeCSVFile(path string, rows []domain.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write(domain.OutputColumns); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := writer.Write(Record(row)); err != nil {
			tmp.Close()
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Record converts a row to its CSV record in the fixed output column order.
// Each field is taken from a named struct field; positional reshuffles can
// never change what lands in which column.
func Record(row domain.Row) []string {
	return []string{
		row.CalculationDate.Format("2006-01-02"),
		row.MetricName,
		strconv.Itoa(int(row.PeriodKind)),
		row.EntityName,
		row.CardProfile,
		row.GroupName,
		row.SectorName,
		strconv.Itoa(int(row.Level)),
		formatValue(row.Value),
		formatValue(row.ValueAvg),
	}
}

// formatValue renders a nullable value; nil becomes an empty cell.
func formatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
