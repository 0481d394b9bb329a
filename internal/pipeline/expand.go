package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

// Expand produces the dense time grid: one row per (entity key, period in
// window) combination. Observed values are left-joined onto the grid; the
// value stays nil wherever no original row exists. After expansion every
// entity key has exactly one row per distinct period in the window, which
// is what makes the later lagged-difference computation well defined.
func (p *Pipeline) Expand(ctx context.Context, rows []domain.Row) ([]domain.Row, error) {
	if len(rows) == 0 {
		return rows, nil
	}

	periods := distinctPeriods(rows)

	// Distinct entity keys in deterministic order.
	seen := make(map[domain.EntityKey]bool)
	keys := make([]domain.EntityKey, 0)
	for _, row := range rows {
		k := row.Key()
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sortKeys(keys)

	// Left-join index. A duplicate (key, period) pair means the source
	// delivered the same measurement twice; the grid would silently double
	// a value, so this is fatal.
	values := make(map[domain.EntityKey]map[time.Time]*float64, len(keys))
	for _, row := range rows {
		k := row.Key()
		if values[k] == nil {
			values[k] = make(map[time.Time]*float64, len(periods))
		}
		if _, dup := values[k][row.CalculationDate]; dup {
			return nil, kpierrors.New(kpierrors.CodeGridIntegrity, "expand",
				"duplicate source row for entity %q metric %d period %s",
				k.EntityName, k.MetricID, row.CalculationDate.Format("2006-01-02"))
		}
		values[k][row.CalculationDate] = row.Value
	}

	out := make([]domain.Row, 0, len(keys)*len(periods))
	for _, k := range keys {
		for _, period := range periods {
			out = append(out, domain.Row{
				CalculationDate: period,
				MetricID:        k.MetricID,
				MetricName:      k.MetricName,
				PeriodKind:      k.PeriodKind,
				EntityName:      k.EntityName,
				CardProfile:     k.CardProfile,
				GroupName:       k.GroupName,
				SectorName:      k.SectorName,
				Level:           k.Level,
				Value:           values[k][period],
			})
		}
	}

	if err := checkGrid(out, len(periods)); err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "expanded dense grid",
		slog.Int("entities", len(keys)),
		slog.Int("periods", len(periods)),
		slog.Int("rows", len(out)))
	return out, nil
}

// checkGrid asserts that every entity key has exactly window rows. A
// mismatch signals a malformed window or duplicate source rows.
func checkGrid(rows []domain.Row, window int) error {
	counts := make(map[domain.EntityKey]int)
	for _, row := range rows {
		counts[row.Key()]++
	}
	for k, n := range counts {
		if n != window {
			return kpierrors.New(kpierrors.CodeGridIntegrity, "expand",
				"entity %q metric %d has %d rows, want %d",
				k.EntityName, k.MetricID, n, window)
		}
	}
	return nil
}

// distinctPeriods returns the sorted distinct calculation dates.
func distinctPeriods(rows []domain.Row) []time.Time {
	seen := make(map[time.Time]bool)
	periods := make([]time.Time, 0)
	for _, row := range rows {
		if !seen[row.CalculationDate] {
			seen[row.CalculationDate] = true
			periods = append(periods, row.CalculationDate)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	return periods
}

// sortKeys orders entity keys the way the published dataset is laid out:
// metric, period kind, hierarchy level, then names.
func sortKeys(keys []domain.EntityKey) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.MetricID != b.MetricID {
			return a.MetricID < b.MetricID
		}
		if a.PeriodKind != b.PeriodKind {
			return a.PeriodKind < b.PeriodKind
		}
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.EntityName != b.EntityName {
			return a.EntityName < b.EntityName
		}
		if a.CardProfile != b.CardProfile {
			return a.CardProfile < b.CardProfile
		}
		if a.GroupName != b.GroupName {
			return a.GroupName < b.GroupName
		}
		return a.SectorName < b.SectorName
	})
}
