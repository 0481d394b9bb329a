package source

import (
	"strings"

	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

// UsableYears reports how many full comparison years the fetched rows
// support. A year-over-year diff for N years needs 12*N+1 monthly periods;
// fewer than 13 distinct periods support no comparison at all and are a
// fatal condition.
func UsableYears(rows []domain.RawRow) (int, error) {
	periods := map[string]struct{}{}
	for _, row := range rows {
		periods[strings.TrimSpace(row.PeriodCode)] = struct{}{}
	}

	n := len(periods)
	switch {
	case n >= 37:
		return 3, nil
	case n >= 25:
		return 2, nil
	case n >= 13:
		return 1, nil
	default:
		return 0, kpierrors.New(kpierrors.CodeSource, "source",
			"only %d distinct periods fetched, at least 13 are needed for a year-over-year comparison", n)
	}
}
