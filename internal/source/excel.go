package source

import (
	"context"
	"log/slog"

	"github.com/xuri/excelize/v2"

	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

// ExcelSource reads raw rows from the first sheet of an .xlsx workbook,
// for manual reruns from the upstream export.
type ExcelSource struct {
	path   string
	logger *slog.Logger
}

// NewExcelSource creates a source reading from path.
func NewExcelSource(path string, logger *slog.Logger) *ExcelSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelSource{path: path, logger: logger}
}

// Fetch reads and parses the workbook, keeping only rows inside the
// lookback window.
func (s *ExcelSource) Fetch(ctx context.Context, lookbackYears int) ([]domain.RawRow, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, kpierrors.Wrap(err, kpierrors.CodeSource, "source", "open workbook %s", s.path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, kpierrors.New(kpierrors.CodeSource, "source", "workbook %s has no sheets", s.path)
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, kpierrors.Wrap(err, kpierrors.CodeSource, "source", "read sheet %s", sheets[0])
	}
	if len(records) < 2 {
		return nil, kpierrors.New(kpierrors.CodeSource, "source",
			"workbook %s contains no data rows", s.path)
	}

	rows, err := parseRawRecords(records[0], records[1:])
	if err != nil {
		return nil, err
	}

	rows, err = filterLookback(rows, lookbackYears)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "loaded raw rows from workbook",
		slog.String("path", s.path),
		slog.String("sheet", sheets[0]),
		slog.Int("count", len(rows)))
	return rows, nil
}
