package pipeline

import (
	"context"
	"log/slog"
	"time"

	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

type entityPeriod struct {
	date   time.Time
	entity string
}

// Averages derives the per-account value: within every (period, entity)
// group, each metric's value is divided by the value of the designated
// active-accounts metric. A small epsilon on the numerator avoids signed
// zeros in the output. Groups without the divisor metric, or with a nil or
// zero divisor, legitimately get nil averages; new entities and roll-up
// levels without a well-defined denominator are expected, not errors.
//
// Every input row comes out unchanged except for the added average; the
// stage re-checks that nothing was dropped, reordered or duplicated.
func (p *Pipeline) Averages(ctx context.Context, rows []domain.Row) ([]domain.Row, error) {
	divisors := make(map[entityPeriod]float64)
	for _, row := range rows {
		if row.MetricName != p.cfg.ActiveAccountsMetric || row.Value == nil || *row.Value == 0 {
			continue
		}
		divisors[entityPeriod{row.CalculationDate, row.EntityName}] = *row.Value
	}

	out := make([]domain.Row, len(rows))
	groupsWithout := make(map[entityPeriod]bool)
	for i, row := range rows {
		key := entityPeriod{row.CalculationDate, row.EntityName}
		divisor, ok := divisors[key]
		switch {
		case !ok:
			groupsWithout[key] = true
		case row.MetricName == p.cfg.ActiveAccountsMetric:
			// The divisor metric itself carries no meaningful average.
		case row.Value != nil:
			row.ValueAvg = domain.Float((*row.Value + p.cfg.AverageEpsilon) / divisor)
		}
		out[i] = row
	}

	if err := checkShapePreserved(rows, out); err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "computed per-account averages",
		slog.Int("groups_without_divisor", len(groupsWithout)))
	return out, nil
}

// checkShapePreserved asserts that the transform kept every row in place.
func checkShapePreserved(in, out []domain.Row) error {
	if len(in) != len(out) {
		return kpierrors.New(kpierrors.CodeSchemaViolation, "average",
			"row count changed from %d to %d", len(in), len(out))
	}
	for i := range in {
		if in[i].Key() != out[i].Key() || !in[i].CalculationDate.Equal(out[i].CalculationDate) {
			return kpierrors.New(kpierrors.CodeSchemaViolation, "average",
				"row %d was reordered or replaced", i)
		}
	}
	return nil
}
