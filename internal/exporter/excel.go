package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

const excelSheet = "KPI"

// ExcelExporter renders the processed dataset as a styled workbook for
// ad-hoc distribution alongside the CSV artifact.
type ExcelExporter struct {
	dir    string
	logger *slog.Logger
}

// NewExcelExporter creates an exporter writing into dir.
func NewExcelExporter(dir string, logger *slog.Logger) *ExcelExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelExporter{dir: dir, logger: logger}
}

// Export writes the dataset to kpi_export_<timestamp>.xlsx and returns the
// file path.
func (e *ExcelExporter) Export(ctx context.Context, rows []domain.Row, now time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", kpierrors.Wrap(err, kpierrors.CodeSink, "export", "create export directory")
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(excelSheet)
	if err != nil {
		return "", kpierrors.Wrap(err, kpierrors.CodeSink, "export", "create sheet")
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9D9D9"}, Pattern: 1},
	})
	if err != nil {
		return "", kpierrors.Wrap(err, kpierrors.CodeSink, "export", "create header style")
	}

	for col, name := range domain.OutputColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(excelSheet, cell, name); err != nil {
			return "", kpierrors.Wrap(err, kpierrors.CodeSink, "export", "write header")
		}
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(domain.OutputColumns), 1)
	if err := f.SetCellStyle(excelSheet, "A1", endHeader, headerStyle); err != nil {
		return "", kpierrors.Wrap(err, kpierrors.CodeSink, "export", "style header")
	}

	for i, row := range rows {
		cells := []interface{}{
			row.CalculationDate.Format("2006-01-02"),
			row.MetricName,
			int(row.PeriodKind),
			row.EntityName,
			row.CardProfile,
			row.GroupName,
			row.SectorName,
			int(row.Level),
			cellValue(row.Value),
			cellValue(row.ValueAvg),
		}
		start, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(excelSheet, start, &cells); err != nil {
			return "", kpierrors.Wrap(err, kpierrors.CodeSink, "export", "write row %d", i)
		}
	}

	name := fmt.Sprintf("kpi_export_%s.xlsx", now.Format("2006-01-02-15-04-05"))
	path := filepath.Join(e.dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", kpierrors.Wrap(err, kpierrors.CodeSink, "export", "save workbook")
	}

	e.logger.InfoContext(ctx, "exported Excel workbook",
		slog.String("path", path),
		slog.Int("rows", len(rows)))
	return path, nil
}

// cellValue maps a nullable measurement to an Excel cell; nil stays empty.
func cellValue(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
