package pipeline

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

// aggKey identifies one roll-up bucket. Group and sector are empty at the
// levels where they are no longer part of the grouping.
type aggKey struct {
	date       time.Time
	metricID   int
	metricName string
	periodKind domain.PeriodKind
	group      string
	sector     string
}

// Aggregate derives the three parent hierarchy levels by summing product
// values per period and metric: product(3) -> group(2) -> sector(1) ->
// overall(0). Synthesized rows carry card profile "all".
//
// Missing values contribute zero to a sum. This is the documented policy
// ("missing means no contribution"), not an accident: a roll-up over
// children that were all unobserved yields an explicit zero, not nil.
//
// After each roll-up the global sum of the new level must equal the global
// sum of its source level within floating-point tolerance. The check runs
// per level so that a fault is localized to the roll-up that introduced it.
func (p *Pipeline) Aggregate(ctx context.Context, rows []domain.Row) ([]domain.Row, error) {
	products := rows

	groups, err := p.rollUp(ctx, products, domain.LevelGroup, func(r domain.Row) aggKey {
		return aggKey{r.CalculationDate, r.MetricID, r.MetricName, r.PeriodKind, r.GroupName, r.SectorName}
	}, func(k aggKey, sum float64) domain.Row {
		return synthRow(k, sum, domain.LevelGroup, k.group, k.group, k.sector)
	})
	if err != nil {
		return nil, err
	}

	sectors, err := p.rollUp(ctx, groups, domain.LevelSector, func(r domain.Row) aggKey {
		return aggKey{r.CalculationDate, r.MetricID, r.MetricName, r.PeriodKind, "", r.SectorName}
	}, func(k aggKey, sum float64) domain.Row {
		// The group column of a sector row repeats the sector name.
		return synthRow(k, sum, domain.LevelSector, k.sector, k.sector, k.sector)
	})
	if err != nil {
		return nil, err
	}

	overall, err := p.rollUp(ctx, sectors, domain.LevelOverall, func(r domain.Row) aggKey {
		return aggKey{r.CalculationDate, r.MetricID, r.MetricName, r.PeriodKind, "", ""}
	}, func(k aggKey, sum float64) domain.Row {
		return synthRow(k, sum, domain.LevelOverall,
			domain.OverallLabel, domain.OverallLabel, domain.OverallLabel)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Row, 0, len(products)+len(groups)+len(sectors)+len(overall))
	out = append(out, products...)
	out = append(out, groups...)
	out = append(out, sectors...)
	out = append(out, overall...)
	return out, nil
}

// rollUp sums the source rows into buckets and synthesizes one parent row
// per bucket, then asserts that the global sum survived.
func (p *Pipeline) rollUp(ctx context.Context, source []domain.Row, level domain.Level,
	keyFn func(domain.Row) aggKey, build func(aggKey, float64) domain.Row) ([]domain.Row, error) {

	sums := make(map[aggKey]float64)
	order := make([]aggKey, 0)
	var sourceTotal float64

	for _, row := range source {
		k := keyFn(row)
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		if row.Value != nil {
			sums[k] += *row.Value
			sourceTotal += *row.Value
		} else {
			sums[k] += 0
		}
	}

	out := make([]domain.Row, 0, len(order))
	var levelTotal float64
	for _, k := range order {
		out = append(out, build(k, sums[k]))
		levelTotal += sums[k]
	}
	sortRows(out)

	if !sumsMatch(sourceTotal, levelTotal, p.cfg.SumTolerance) {
		return nil, kpierrors.New(kpierrors.CodeAggregationIntegrity, "aggregate",
			"level %d sum %.6f diverges from source sum %.6f", level, levelTotal, sourceTotal)
	}

	p.logger.DebugContext(ctx, "roll-up complete",
		slog.Int("level", int(level)),
		slog.Int("rows", len(out)),
		slog.Float64("sum", levelTotal))
	return out, nil
}

func synthRow(k aggKey, sum float64, level domain.Level, entity, group, sector string) domain.Row {
	return domain.Row{
		CalculationDate: k.date,
		MetricID:        k.metricID,
		MetricName:      k.metricName,
		PeriodKind:      k.periodKind,
		EntityName:      entity,
		CardProfile:     domain.CardProfileAll,
		GroupName:       group,
		SectorName:      sector,
		Level:           level,
		Value:           domain.Float(sum),
	}
}

// sumsMatch compares two sums with a tolerance scaled to their magnitude.
func sumsMatch(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Abs(a))
}

// sortRows orders rows by entity key, then period ascending.
func sortRows(rows []domain.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
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
		return a.CalculationDate.Before(b.CalculationDate)
	})
}
