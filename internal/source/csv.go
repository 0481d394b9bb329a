package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"strings"

	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

// CSVSource reads raw rows from a delimited file. Both comma and semicolon
// separated exports occur in the wild; the delimiter is sniffed from the
// header line.
type CSVSource struct {
	path   string
	logger *slog.Logger
}

// NewCSVSource creates a source reading from path.
func NewCSVSource(path string, logger *slog.Logger) *CSVSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVSource{path: path, logger: logger}
}

// Fetch reads and parses the file, keeping only rows inside the lookback
// window.
func (s *CSVSource) Fetch(ctx context.Context, lookbackYears int) ([]domain.RawRow, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, kpierrors.Wrap(err, kpierrors.CodeSource, "source", "open raw file %s", s.path)
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReader(file))
	reader.Comma = sniffDelimiter(s.path)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, kpierrors.Wrap(err, kpierrors.CodeSource, "source", "parse raw file %s", s.path)
	}
	if len(records) < 2 {
		return nil, kpierrors.New(kpierrors.CodeSource, "source",
			"raw file %s contains no data rows", s.path)
	}

	rows, err := parseRawRecords(records[0], records[1:])
	if err != nil {
		return nil, err
	}

	rows, err = filterLookback(rows, lookbackYears)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "loaded raw rows from CSV",
		slog.String("path", s.path),
		slog.Int("count", len(rows)))
	return rows, nil
}

// sniffDelimiter inspects the header line for a semicolon.
func sniffDelimiter(path string) rune {
	file, err := os.Open(path)
	if err != nil {
		return ','
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if scanner.Scan() && strings.Contains(scanner.Text(), ";") {
		return ';'
	}
	return ','
}
