package pipeline

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"kpiflow/pkg/contracts/domain"
)

// Diffs computes, per logical series, the fractional change of each value
// against the value DiffLagPeriods earlier (12 by default, i.e. the same
// month of the prior year). Grouping by the full entity key before
// computing the lag is mandatory, not an optimization: without it the
// comparison would leak values between unrelated series.
//
// The difference is nil when fewer than lag prior periods exist, when either
// value is missing, or when the denominator is zero. Differences whose
// absolute magnitude exceeds the clamp threshold are data artifacts from
// products changing definition and are nulled rather than propagated.
//
// Series are independent, so they are computed concurrently; each goroutine
// writes only its own row positions.
func (p *Pipeline) Diffs(ctx context.Context, rows []domain.Row) ([]domain.Row, error) {
	out := make([]domain.Row, len(rows))
	copy(out, rows)

	groups := make(map[domain.EntityKey][]int)
	for i, row := range rows {
		k := row.Key()
		groups[k] = append(groups[k], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, positions := range groups {
		positions := positions
		g.Go(func() error {
			// Stop picking up series once the run is cancelled or a
			// sibling failed.
			if err := gctx.Err(); err != nil {
				return err
			}
			p.diffSeries(out, positions)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "computed period-over-period differences",
		slog.Int("series", len(groups)),
		slog.Int("lag_periods", p.cfg.DiffLagPeriods))
	return out, nil
}

// diffSeries fills the Diff column for one series, identified by its row
// positions in out.
func (p *Pipeline) diffSeries(out []domain.Row, positions []int) {
	sort.Slice(positions, func(i, j int) bool {
		return out[positions[i]].CalculationDate.Before(out[positions[j]].CalculationDate)
	})

	lag := p.cfg.DiffLagPeriods
	for i, pos := range positions {
		if i < lag {
			continue
		}
		cur := out[pos].Value
		prev := out[positions[i-lag]].Value
		if cur == nil || prev == nil || *prev == 0 {
			continue
		}
		diff := *cur / *prev - 1
		if math.Abs(diff) > p.cfg.DiffClampThreshold {
			continue
		}
		out[pos].Diff = domain.Float(diff)
	}
}
