package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

var rawValidate = validator.New()

// Normalize cleans the raw row set: period codes become canonical month-end
// dates, string fields are trimmed, operationally invalid rows are dropped
// and metric display names are tidied up. Rows come out at level 3 with
// category fields still unset.
func (p *Pipeline) Normalize(ctx context.Context, raw []domain.RawRow) ([]domain.Row, error) {
	rows := make([]domain.Row, 0, len(raw))
	dropped := 0

	for i, rr := range raw {
		rr.PeriodCode = strings.TrimSpace(rr.PeriodCode)
		rr.MetricName = strings.TrimSpace(rr.MetricName)
		rr.ProductName = strings.TrimSpace(rr.ProductName)
		rr.CardProfile = strings.TrimSpace(rr.CardProfile)

		if err := rawValidate.Struct(rr); err != nil {
			return nil, kpierrors.Wrap(err, kpierrors.CodeSchemaViolation, "normalize",
				"raw row %d is missing required fields", i)
		}

		if p.isDropped(rr) {
			dropped++
			continue
		}

		date, err := parsePeriodCode(rr.PeriodCode)
		if err != nil {
			return nil, kpierrors.Wrap(err, kpierrors.CodeSchemaViolation, "normalize",
				"raw row %d has a malformed period code %q", i, rr.PeriodCode)
		}

		rows = append(rows, domain.Row{
			CalculationDate: date,
			MetricID:        rr.MetricID,
			MetricName:      prettifyMetricName(rr.MetricName),
			PeriodKind:      domain.PeriodKind(rr.PeriodKind),
			EntityName:      rr.ProductName,
			CardProfile:     rr.CardProfile,
			Level:           domain.LevelProduct,
			Value:           rr.Value,
		})
	}

	if dropped > 0 {
		p.logger.InfoContext(ctx, "dropped operationally invalid raw rows",
			slog.Int("count", dropped))
	}
	return rows, nil
}

// isDropped reports whether the raw row is a known-invalid placeholder.
func (p *Pipeline) isDropped(rr domain.RawRow) bool {
	for _, name := range p.ref.DropEntities {
		if rr.ProductName == name {
			return true
		}
	}
	for _, name := range p.ref.DropMetrics {
		if rr.MetricName == name {
			return true
		}
	}
	return false
}

// parsePeriodCode converts a YYYYMM code into the month-end date. The
// calculation date of a period is always the last day of its month.
func parsePeriodCode(code string) (time.Time, error) {
	t, err := time.ParseInLocation("200601", code, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return domain.MonthEnd(t), nil
}

// metricNameReplacer performs the cosmetic display-name cleanup: fix the
// known umlaut misencoding, strip parenthesis characters and drop the
// monthly filler token.
var metricNameReplacer = strings.NewReplacer(
	"gueltig", "gültig",
	"(", "",
	")", "",
	" Monatl.", "",
)

func prettifyMetricName(name string) string {
	return strings.TrimSpace(metricNameReplacer.Replace(name))
}
