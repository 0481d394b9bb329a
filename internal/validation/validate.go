// Package validation performs the final, non-mutating checks on the
// processed dataset before it is published.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"kpiflow/internal/config"
	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

// Report summarizes the outcome of the output validation. Warnings do not
// stop the run; they usually mean a new product or category was introduced
// and the expected reference sets need updating.
type Report struct {
	Warnings []string
	Rows     int
	Periods  int
}

// Validator compares the processed dataset against the maintained expected
// reference sets.
type Validator struct {
	expected config.Expected
	logger   *slog.Logger
}

// New creates a validator for the given expected reference.
func New(expected config.Expected, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{expected: expected, logger: logger}
}

// Validate checks shape and distinct-value sets of the dataset. Structural
// mismatches (column set, period count) are fatal because they mean the
// window or schema assumptions are broken; distribution mismatches are
// logged as warnings and the run completes.
func (v *Validator) Validate(ctx context.Context, rows []domain.Row) (*Report, error) {
	report := &Report{Rows: len(rows)}

	// The column set is fixed by the Row struct; comparing it against the
	// reference catches drift between code and maintained expectations.
	if !sameStrings(domain.OutputColumns, v.expected.Columns) {
		return nil, kpierrors.New(kpierrors.CodeSchemaViolation, "validate",
			"output columns %v diverge from expected %v", domain.OutputColumns, v.expected.Columns)
	}

	periods := make(map[time.Time]bool)
	groups := make(map[string]bool)
	profiles := make(map[string]bool)
	levels := make(map[int]bool)
	kinds := make(map[int]bool)
	for _, row := range rows {
		periods[row.CalculationDate] = true
		groups[row.GroupName] = true
		profiles[row.CardProfile] = true
		levels[int(row.Level)] = true
		kinds[int(row.PeriodKind)] = true
	}
	report.Periods = len(periods)

	if len(periods) != v.expected.PeriodCount {
		return nil, kpierrors.New(kpierrors.CodeGridIntegrity, "validate",
			"dataset has %d distinct periods, want %d", len(periods), v.expected.PeriodCount)
	}

	v.compareStringSet(ctx, report, "mandant", keys(groups), v.expected.Groups)
	v.compareStringSet(ctx, report, "cardprofile", keys(profiles), v.expected.CardProfiles)
	v.compareIntSet(ctx, report, "level", intKeys(levels), v.expected.Levels)
	v.compareIntSet(ctx, report, "period_id", intKeys(kinds), v.expected.PeriodKinds)

	v.logger.InfoContext(ctx, "output validation finished",
		slog.Int("rows", report.Rows),
		slog.Int("periods", report.Periods),
		slog.Int("warnings", len(report.Warnings)))
	return report, nil
}

func (v *Validator) compareStringSet(ctx context.Context, report *Report, name string, actual, expected []string) {
	unexpected, missing := diffSets(actual, expected)
	v.warn(ctx, report, name, unexpected, missing)
}

func (v *Validator) compareIntSet(ctx context.Context, report *Report, name string, actual, expected []int) {
	unexpected, missing := diffSets(intsToStrings(actual), intsToStrings(expected))
	v.warn(ctx, report, name, unexpected, missing)
}

func (v *Validator) warn(ctx context.Context, report *Report, name string, unexpected, missing []string) {
	if len(unexpected) > 0 {
		msg := fmt.Sprintf("unexpected %s values: %v", name, unexpected)
		report.Warnings = append(report.Warnings, msg)
		v.logger.WarnContext(ctx, "distribution mismatch", slog.String("column", name),
			slog.Any("unexpected", unexpected))
	}
	if len(missing) > 0 {
		msg := fmt.Sprintf("missing %s values: %v", name, missing)
		report.Warnings = append(report.Warnings, msg)
		v.logger.WarnContext(ctx, "distribution mismatch", slog.String("column", name),
			slog.Any("missing", missing))
	}
}

// diffSets returns values present in actual but not expected, and values
// expected but not observed. Both results come back sorted.
func diffSets(actual, expected []string) (unexpected, missing []string) {
	exp := make(map[string]bool, len(expected))
	for _, s := range expected {
		exp[s] = true
	}
	act := make(map[string]bool, len(actual))
	for _, s := range actual {
		act[s] = true
		if !exp[s] {
			unexpected = append(unexpected, s)
		}
	}
	for _, s := range expected {
		if !act[s] {
			missing = append(missing, s)
		}
	}
	sort.Strings(unexpected)
	sort.Strings(missing)
	return unexpected, missing
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func intKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func intsToStrings(in []int) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprintf("%d", v)
	}
	return out
}
