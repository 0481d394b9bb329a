package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpiflow/pkg/contracts/domain"
)

func seedRows() []domain.RawRow {
	return []domain.RawRow{
		{PeriodCode: "202403", MetricID: 1, MetricName: "Umsatz", PeriodKind: 2,
			ProductName: "Card A", CardProfile: "CC", Value: domain.Float(100)},
		{PeriodCode: "202403", MetricID: 1, MetricName: "Umsatz", PeriodKind: 2,
			ProductName: "Card B", CardProfile: "PP", Value: domain.Float(50)},
	}
}

func TestMultiplyExpandsMetricsAndPeriods(t *testing.T) {
	rows, err := NewGenerator(42).Multiply(seedRows(), 3, 4)
	require.NoError(t, err)
	require.Len(t, rows, 2*3*4)

	metrics := map[string]bool{}
	periods := map[string]bool{}
	for _, row := range rows {
		metrics[row.MetricName] = true
		periods[row.PeriodCode] = true
	}
	assert.Equal(t, map[string]bool{"Umsatz": true, "Umsatz 2": true, "Umsatz 3": true}, metrics)
	assert.Equal(t, map[string]bool{
		"202403": true, "202402": true, "202401": true, "202312": true,
	}, periods)
}

func TestMultiplyIsReproducible(t *testing.T) {
	a, err := NewGenerator(7).Multiply(seedRows(), 2, 3)
	require.NoError(t, err)
	b, err := NewGenerator(7).Multiply(seedRows(), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMultiplyVariesValuesWithinBounds(t *testing.T) {
	rows, err := NewGenerator(1).Multiply(seedRows(), 1, 6)
	require.NoError(t, err)
	for _, row := range rows {
		require.NotNil(t, row.Value)
		base := 100.0
		if row.ProductName == "Card B" {
			base = 50.0
		}
		assert.GreaterOrEqual(t, *row.Value, base*0.8)
		assert.LessOrEqual(t, *row.Value, base*1.1)
	}
}

func TestMultiplyEmptySeed(t *testing.T) {
	_, err := NewGenerator(1).Multiply(nil, 2, 2)
	assert.Error(t, err)
}

func TestWriteRawCSVRoundTrip(t *testing.T) {
	rows, err := NewGenerator(3).Multiply(seedRows(), 2, 2)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "raw.csv")
	require.NoError(t, WriteRawCSV(path, rows))

	read, err := NewCSVSource(path, nil).Fetch(context.Background(), 100)
	require.NoError(t, err)
	assert.Len(t, read, len(rows))
}
