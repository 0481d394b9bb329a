package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpiflow/internal/config"
	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

func expected() config.Expected {
	return config.Expected{
		Columns: []string{
			"calculation_date", "kpi_name", "period_id", "product_name",
			"cardprofile", "mandant", "sector", "level", "value", "value_avg",
		},
		Groups:       []string{"G1", "Overall"},
		CardProfiles: []string{"all", "CC"},
		Levels:       []int{0, 3},
		PeriodKinds:  []int{1},
		PeriodCount:  2,
	}
}

func row(day int, group, profile string, level domain.Level, kind domain.PeriodKind) domain.Row {
	return domain.Row{
		CalculationDate: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		MetricID:        1,
		MetricName:      "Umsatz",
		PeriodKind:      kind,
		EntityName:      "Card A",
		CardProfile:     profile,
		GroupName:       group,
		SectorName:      "S1",
		Level:           level,
	}
}

func TestValidateCleanDataset(t *testing.T) {
	rows := []domain.Row{
		row(15, "G1", "CC", domain.LevelProduct, domain.PeriodKindSnapshot),
		row(31, "Overall", "all", domain.LevelOverall, domain.PeriodKindSnapshot),
	}

	report, err := New(expected(), nil).Validate(context.Background(), rows)
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 2, report.Periods)
}

func TestValidateWrongPeriodCountIsFatal(t *testing.T) {
	rows := []domain.Row{
		row(31, "G1", "CC", domain.LevelProduct, domain.PeriodKindSnapshot),
	}

	_, err := New(expected(), nil).Validate(context.Background(), rows)
	require.Error(t, err)
	assert.Equal(t, kpierrors.CodeGridIntegrity, kpierrors.CodeOf(err))
}

func TestValidateWrongColumnSetIsFatal(t *testing.T) {
	exp := expected()
	exp.Columns = append([]string{}, exp.Columns[:9]...) // drop value_avg

	_, err := New(exp, nil).Validate(context.Background(), []domain.Row{
		row(15, "G1", "CC", domain.LevelProduct, domain.PeriodKindSnapshot),
		row(31, "G1", "CC", domain.LevelProduct, domain.PeriodKindSnapshot),
	})
	require.Error(t, err)
	assert.Equal(t, kpierrors.CodeSchemaViolation, kpierrors.CodeOf(err))
}

func TestValidateDistributionMismatchesAreWarnings(t *testing.T) {
	rows := []domain.Row{
		// Unknown group G9 and profile PP; expected G1/Overall and CC/all
		// partially unobserved.
		row(15, "G9", "PP", domain.LevelProduct, domain.PeriodKindSnapshot),
		row(31, "G1", "CC", domain.LevelProduct, domain.PeriodKindSnapshot),
	}

	report, err := New(expected(), nil).Validate(context.Background(), rows)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Warnings)

	var sawUnexpectedGroup, sawUnexpectedProfile bool
	for _, w := range report.Warnings {
		if w == "unexpected mandant values: [G9]" {
			sawUnexpectedGroup = true
		}
		if w == "unexpected cardprofile values: [PP]" {
			sawUnexpectedProfile = true
		}
	}
	assert.True(t, sawUnexpectedGroup, "warnings: %v", report.Warnings)
	assert.True(t, sawUnexpectedProfile, "warnings: %v", report.Warnings)
}

func TestDiffSets(t *testing.T) {
	unexpected, missing := diffSets([]string{"a", "c"}, []string{"a", "b"})
	assert.Equal(t, []string{"c"}, unexpected)
	assert.Equal(t, []string{"b"}, missing)

	unexpected, missing = diffSets([]string{"a"}, []string{"a"})
	assert.Empty(t, unexpected)
	assert.Empty(t, missing)
}
