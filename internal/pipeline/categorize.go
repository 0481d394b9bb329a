package pipeline

import (
	"context"
	"sort"
	"strings"

	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

// Categorize annotates every product row with its owning group and sector
// from the static category reference. A product missing from the reference
// is a fatal configuration error: silently dropping or mis-tagging it would
// corrupt every aggregation level without detection. The reference has to
// be extended whenever a new product shows up upstream.
func (p *Pipeline) Categorize(ctx context.Context, rows []domain.Row) ([]domain.Row, error) {
	out := make([]domain.Row, len(rows))
	unknown := make(map[string]bool)

	for i, row := range rows {
		cat, ok := p.ref.Lookup(row.EntityName)
		if !ok {
			unknown[row.EntityName] = true
			continue
		}
		row.GroupName = cat.Group
		row.SectorName = cat.Sector
		row.Level = domain.LevelProduct
		out[i] = row
	}

	if len(unknown) > 0 {
		names := make([]string, 0, len(unknown))
		for name := range unknown {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, kpierrors.New(kpierrors.CodeLookupMiss, "categorize",
			"products missing from category reference %s: %s",
			p.ref.Version, strings.Join(names, ", "))
	}
	return out, nil
}
