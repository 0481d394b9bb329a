// Package source supplies the raw measurement rows the pipeline consumes:
// one row per (period, product, metric) within the lookback window.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"kpiflow/internal/config"
	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

// Source fetches raw rows bounded by a lookback window in years.
type Source interface {
	Fetch(ctx context.Context, lookbackYears int) ([]domain.RawRow, error)
}

// New builds the configured raw row source.
func New(cfg config.SourceConfig, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "postgres":
		return NewDBSource(cfg.DSN, cfg.QueryFile, logger)
	case "csv":
		return NewCSVSource(cfg.RawFile, logger), nil
	case "excel":
		return NewExcelSource(cfg.RawFile, logger), nil
	default:
		return nil, fmt.Errorf("unknown source driver %q", cfg.Driver)
	}
}

// rawColumns is the required header set of file based sources.
var rawColumns = []string{
	"period_code", "kpi_id", "kpi_name", "period_id",
	"product_name", "cardprofile", "value",
}

// parseRawRecords converts header-addressed records into raw rows. Columns
// are resolved by name; the physical column order in the file is irrelevant.
func parseRawRecords(header []string, records [][]string) ([]domain.RawRow, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, name := range rawColumns {
		if _, ok := idx[name]; !ok {
			return nil, kpierrors.New(kpierrors.CodeSchemaViolation, "source",
				"raw input is missing column %q", name)
		}
	}

	field := func(record []string, name string) string {
		i := idx[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	rows := make([]domain.RawRow, 0, len(records))
	for n, record := range records {
		metricID, err := strconv.Atoi(field(record, "kpi_id"))
		if err != nil {
			return nil, kpierrors.Wrap(err, kpierrors.CodeSchemaViolation, "source",
				"record %d has a non-numeric kpi_id", n+1)
		}
		periodKind, err := strconv.Atoi(field(record, "period_id"))
		if err != nil {
			return nil, kpierrors.Wrap(err, kpierrors.CodeSchemaViolation, "source",
				"record %d has a non-numeric period_id", n+1)
		}

		var value *float64
		if raw := field(record, "value"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, kpierrors.Wrap(err, kpierrors.CodeSchemaViolation, "source",
					"record %d has a non-numeric value %q", n+1, raw)
			}
			value = domain.Float(v)
		}

		rows = append(rows, domain.RawRow{
			PeriodCode:  field(record, "period_code"),
			MetricID:    metricID,
			MetricName:  field(record, "kpi_name"),
			PeriodKind:  periodKind,
			ProductName: field(record, "product_name"),
			CardProfile: field(record, "cardprofile"),
			Value:       value,
		})
	}
	return rows, nil
}

// filterLookback keeps rows within the window: strictly after the first day
// of the month lookbackYears before the newest period, newest included.
// That yields years*12+1 periods, the extra month being needed for proper
// year-over-year comparison of the oldest full year.
func filterLookback(rows []domain.RawRow, lookbackYears int) ([]domain.RawRow, error) {
	if len(rows) == 0 {
		return rows, nil
	}

	var max time.Time
	for _, row := range rows {
		t, err := time.ParseInLocation("200601", strings.TrimSpace(row.PeriodCode), time.UTC)
		if err != nil {
			return nil, kpierrors.Wrap(err, kpierrors.CodeSchemaViolation, "source",
				"malformed period code %q", row.PeriodCode)
		}
		if t.After(max) {
			max = t
		}
	}

	// Comparison happens on month-end dates, so the same month
	// lookbackYears earlier stays inside the window: 12*years+1 periods.
	cutoff := time.Date(max.Year()-lookbackYears, max.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.RawRow, 0, len(rows))
	for _, row := range rows {
		t, _ := time.ParseInLocation("200601", strings.TrimSpace(row.PeriodCode), time.UTC)
		if domain.MonthEnd(t).After(cutoff) {
			out = append(out, row)
		}
	}
	return out, nil
}
