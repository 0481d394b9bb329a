package pipeline

import (
	"context"
	"log/slog"
	"time"

	"kpiflow/pkg/contracts/domain"
)

// LastObserved returns, per product, the most recent period in which it was
// actually measured. Pure function of the pre-expansion row set; the result
// bounds how far forward the grid expansion may synthesize rows.
func LastObserved(rows []domain.Row) map[string]time.Time {
	last := make(map[string]time.Time)
	for _, row := range rows {
		if seen, ok := last[row.EntityName]; !ok || row.CalculationDate.After(seen) {
			last[row.EntityName] = row.CalculationDate
		}
	}
	return last
}

// Truncate removes expanded placeholder rows dated after a product's last
// observed period. A discontinued product must not appear to exist beyond
// its lifetime; only gaps within the active lifetime are legitimate
// missing-data placeholders.
func (p *Pipeline) Truncate(ctx context.Context, rows []domain.Row, lastObserved map[string]time.Time) []domain.Row {
	out := make([]domain.Row, 0, len(rows))
	removed := 0

	for _, row := range rows {
		last, ok := lastObserved[row.EntityName]
		if !ok || row.CalculationDate.After(last) {
			removed++
			continue
		}
		out = append(out, row)
	}

	if removed > 0 {
		p.logger.InfoContext(ctx, "truncated rows beyond entity lifecycles",
			slog.Int("count", removed))
	}
	return out
}
