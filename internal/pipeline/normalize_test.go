package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kpierrors "kpiflow/internal/errors"
	"kpiflow/pkg/contracts/domain"
)

func TestParsePeriodCode(t *testing.T) {
	tests := []struct {
		code string
		want time.Time
	}{
		{"202401", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"202402", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)}, // leap year
		{"202302", time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC)},
		{"202412", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"202406", time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := parsePeriodCode(tt.code)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}

	_, err := parsePeriodCode("2024-1")
	assert.Error(t, err)
}

func TestPrettifyMetricName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Anzahl gueltige Konten Total", "Anzahl gültige Konten Total"},
		{"Umsatz (brutto)", "Umsatz brutto"},
		{"Nr. TRX Monatl.", "Nr. TRX"},
		{"Umsatz", "Umsatz"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, prettifyMetricName(tt.in))
		})
	}
}

func TestNormalizeTrimsAndConverts(t *testing.T) {
	raw := []domain.RawRow{
		{PeriodCode: " 202401 ", MetricID: 1, MetricName: "  Umsatz  ", PeriodKind: 1,
			ProductName: "  Card A  ", CardProfile: " CC ", Value: domain.Float(42)},
	}

	p := testPipeline(t)
	rows, err := p.Normalize(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.True(t, row.CalculationDate.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Umsatz", row.MetricName)
	assert.Equal(t, "Card A", row.EntityName)
	assert.Equal(t, "CC", row.CardProfile)
	assert.Equal(t, domain.LevelProduct, row.Level)
	require.NotNil(t, row.Value)
	assert.Equal(t, 42.0, *row.Value)
}

func TestNormalizeDropsInvalidRows(t *testing.T) {
	raw := []domain.RawRow{
		{PeriodCode: "202401", MetricID: 1, MetricName: "Umsatz", PeriodKind: 1,
			ProductName: "Card A", CardProfile: "CC", Value: domain.Float(1)},
		{PeriodCode: "202401", MetricID: 1, MetricName: "Umsatz", PeriodKind: 1,
			ProductName: "reserviert", CardProfile: "CC", Value: domain.Float(2)},
		{PeriodCode: "202401", MetricID: 2, MetricName: "NCA Bestand (reserviert)", PeriodKind: 1,
			ProductName: "Card A", CardProfile: "CC", Value: domain.Float(3)},
	}

	p := testPipeline(t)
	rows, err := p.Normalize(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Card A", rows[0].EntityName)
	assert.Equal(t, "Umsatz", rows[0].MetricName)
}

func TestNormalizeRejectsMalformedRows(t *testing.T) {
	tests := []struct {
		name string
		raw  domain.RawRow
	}{
		{
			name: "bad period code",
			raw: domain.RawRow{PeriodCode: "24-01", MetricID: 1, MetricName: "Umsatz",
				PeriodKind: 1, ProductName: "Card A"},
		},
		{
			name: "missing metric name",
			raw: domain.RawRow{PeriodCode: "202401", MetricID: 1, PeriodKind: 1,
				ProductName: "Card A"},
		},
		{
			name: "missing product",
			raw: domain.RawRow{PeriodCode: "202401", MetricID: 1, MetricName: "Umsatz",
				PeriodKind: 1},
		},
		{
			name: "invalid period kind",
			raw: domain.RawRow{PeriodCode: "202401", MetricID: 1, MetricName: "Umsatz",
				PeriodKind: 9, ProductName: "Card A"},
		},
	}

	p := testPipeline(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Normalize(context.Background(), []domain.RawRow{tt.raw})
			require.Error(t, err)
			assert.Equal(t, kpierrors.CodeSchemaViolation, kpierrors.CodeOf(err))
		})
	}
}

func TestNormalizeKeepsNilValues(t *testing.T) {
	raw := []domain.RawRow{
		{PeriodCode: "202401", MetricID: 1, MetricName: "Umsatz", PeriodKind: 1,
			ProductName: "Card A", CardProfile: "CC"},
	}

	p := testPipeline(t)
	rows, err := p.Normalize(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Value)
}
