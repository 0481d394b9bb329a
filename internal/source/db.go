package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

// DBSource fetches raw rows from the reporting database. The SQL lives in
// a template file maintained next to the pipeline; the @n_years_back
// placeholder is substituted with the lookback window before execution.
type DBSource struct {
	db        *sqlx.DB
	queryFile string
	logger    *slog.Logger
}

// NewDBSource connects to the database and verifies the connection.
func NewDBSource(dsn, queryFile string, logger *slog.Logger) (*DBSource, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to reporting database: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DBSource{db: db, queryFile: queryFile, logger: logger}, nil
}

// Fetch runs the templated query and returns the raw row set.
func (s *DBSource) Fetch(ctx context.Context, lookbackYears int) ([]domain.RawRow, error) {
	query, err := s.readQuery(lookbackYears)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "fetching raw rows from database",
		slog.String("query_file", s.queryFile),
		slog.Int("lookback_years", lookbackYears))

	var rows []domain.RawRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, kpierrors.Wrap(err, kpierrors.CodeSource, "source", "execute raw query")
	}

	s.logger.InfoContext(ctx, "fetched raw rows", slog.Int("count", len(rows)))
	return rows, nil
}

// Close releases the database connection.
func (s *DBSource) Close() error {
	return s.db.Close()
}

// readQuery loads the SQL template and substitutes the lookback placeholder.
func (s *DBSource) readQuery(lookbackYears int) (string, error) {
	data, err := os.ReadFile(s.queryFile)
	if err != nil {
		return "", kpierrors.Wrap(err, kpierrors.CodeSource, "source",
			"read query file %s", s.queryFile)
	}
	// Strip a UTF-8 BOM; the templates come from Windows tooling.
	query := strings.TrimPrefix(string(data), "\uFEFF")
	return strings.ReplaceAll(query, "@n_years_back", strconv.Itoa(lookbackYears)), nil
}
