package pipeline

import (
	"context"
	"log/slog"
	"time"

	"kpiflow/internal/config"
	"kpiflow/internal/metrics"
	"kpiflow/pkg/contracts/domain"
)

// Pipeline runs the preprocessing stages in order, short-circuiting on the
// first fatal error. It never publishes anything itself; the caller hands
// the returned dataset to the sink only when Run succeeds.
type Pipeline struct {
	cfg     config.PipelineConfig
	ref     *config.Reference
	logger  *slog.Logger
	metrics *metrics.Pipeline
}

// New creates a pipeline with the given transformation parameters and
// category reference.
func New(cfg config.PipelineConfig, ref *config.Reference, logger *slog.Logger, m *metrics.Pipeline) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.NewNopPipeline()
	}
	return &Pipeline{cfg: cfg, ref: ref, logger: logger, metrics: m}
}

// Run executes all transformation stages on the raw row snapshot and
// returns the analysis-ready dataset.
func (p *Pipeline) Run(ctx context.Context, raw []domain.RawRow) ([]domain.Row, error) {
	p.logger.InfoContext(ctx, "pipeline run started",
		slog.Int("raw_rows", len(raw)),
		slog.String("reference_version", p.ref.Version))

	rows, err := p.stageRows(ctx, "normalize", len(raw), func() ([]domain.Row, error) {
		return p.Normalize(ctx, raw)
	})
	if err != nil {
		return nil, err
	}

	rows, err = p.stage(ctx, "categorize", rows, p.Categorize)
	if err != nil {
		return nil, err
	}

	// Lifecycles must be tracked before expansion adds synthetic periods.
	lastObserved := LastObserved(rows)

	rows, err = p.stage(ctx, "expand", rows, p.Expand)
	if err != nil {
		return nil, err
	}

	rows, err = p.stage(ctx, "truncate", rows, func(ctx context.Context, in []domain.Row) ([]domain.Row, error) {
		return p.Truncate(ctx, in, lastObserved), nil
	})
	if err != nil {
		return nil, err
	}

	rows, err = p.stage(ctx, "aggregate", rows, p.Aggregate)
	if err != nil {
		return nil, err
	}

	rows, err = p.stage(ctx, "average", rows, p.Averages)
	if err != nil {
		return nil, err
	}

	rows, err = p.stage(ctx, "diff", rows, p.Diffs)
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "pipeline run finished", slog.Int("rows", len(rows)))
	return rows, nil
}

// stage runs one transformation with uniform logging and instrumentation.
func (p *Pipeline) stage(ctx context.Context, name string, in []domain.Row, fn func(context.Context, []domain.Row) ([]domain.Row, error)) ([]domain.Row, error) {
	return p.stageRows(ctx, name, len(in), func() ([]domain.Row, error) {
		return fn(ctx, in)
	})
}

func (p *Pipeline) stageRows(ctx context.Context, name string, inCount int, fn func() ([]domain.Row, error)) ([]domain.Row, error) {
	start := time.Now()
	p.metrics.RowsIn.WithLabelValues(name).Add(float64(inCount))

	out, err := fn()
	elapsed := time.Since(start)
	p.metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		p.logger.ErrorContext(ctx, "pipeline stage failed",
			slog.String("stage", name),
			slog.String("error", err.Error()))
		return nil, err
	}

	p.metrics.RowsOut.WithLabelValues(name).Add(float64(len(out)))
	p.logger.InfoContext(ctx, "pipeline stage finished",
		slog.String("stage", name),
		slog.Int("rows_in", inCount),
		slog.Int("rows_out", len(out)),
		slog.Duration("elapsed", elapsed))
	return out, nil
}
