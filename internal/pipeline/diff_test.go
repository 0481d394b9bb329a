package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpiflow/internal/config"
	"kpiflow/pkg/contracts/domain"
)

func diffPipeline(t *testing.T, lag int) *Pipeline {
	t.Helper()
	cfg := config.Default().Pipeline
	cfg.DiffLagPeriods = lag
	return New(cfg, testReference(), nil, nil)
}

func TestDiffsLagOne(t *testing.T) {
	rows := []domain.Row{
		productRow(t, "202401", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(1000)),
		productRow(t, "202402", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(1200)),
	}

	p := diffPipeline(t, 1)
	out, err := p.Diffs(context.Background(), rows)
	require.NoError(t, err)

	assert.Nil(t, out[0].Diff)
	require.NotNil(t, out[1].Diff)
	assert.InDelta(t, 0.2, *out[1].Diff, 1e-9)
}

func TestDiffsSeriesShorterThanLag(t *testing.T) {
	rows := []domain.Row{
		productRow(t, "202401", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(100)),
		productRow(t, "202402", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(110)),
		productRow(t, "202403", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(120)),
	}

	p := diffPipeline(t, 12)
	out, err := p.Diffs(context.Background(), rows)
	require.NoError(t, err)
	for _, row := range out {
		assert.Nil(t, row.Diff)
	}
}

func TestDiffsTwelveMonthLag(t *testing.T) {
	rows := make([]domain.Row, 0, 13)
	codes := []string{
		"202301", "202302", "202303", "202304", "202305", "202306",
		"202307", "202308", "202309", "202310", "202311", "202312", "202401",
	}
	for i, code := range codes {
		rows = append(rows, productRow(t, code, 1, "Umsatz", "Card A", "CC", "G1", "S1",
			domain.Float(float64(100+i))))
	}

	p := diffPipeline(t, 12)
	out, err := p.Diffs(context.Background(), rows)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		assert.Nil(t, out[i].Diff)
	}
	require.NotNil(t, out[12].Diff)
	assert.InDelta(t, 0.12, *out[12].Diff, 1e-9) // 112/100 - 1
}

func TestDiffsNilAndZeroHandling(t *testing.T) {
	rows := []domain.Row{
		productRow(t, "202401", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(0)),
		productRow(t, "202402", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(100)),
		productRow(t, "202403", 1, "Umsatz", "Card A", "CC", "G1", "S1", nil),
		productRow(t, "202404", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(120)),
	}

	p := diffPipeline(t, 1)
	out, err := p.Diffs(context.Background(), rows)
	require.NoError(t, err)

	assert.Nil(t, out[0].Diff) // no prior period
	assert.Nil(t, out[1].Diff) // division by zero
	assert.Nil(t, out[2].Diff) // current value missing
	assert.Nil(t, out[3].Diff) // prior value missing
}

func TestDiffsClampsBeyondThreshold(t *testing.T) {
	rows := []domain.Row{
		productRow(t, "202401", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(1)),
		productRow(t, "202402", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(1000)),
		productRow(t, "202403", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(1100)),
	}

	cfg := config.Default().Pipeline
	cfg.DiffLagPeriods = 1
	cfg.DiffClampThreshold = 10
	p := New(cfg, testReference(), nil, nil)

	out, err := p.Diffs(context.Background(), rows)
	require.NoError(t, err)

	// 1 -> 1000 exceeds the configured threshold and is nulled.
	assert.Nil(t, out[1].Diff)
	require.NotNil(t, out[2].Diff)
	assert.InDelta(t, 0.1, *out[2].Diff, 1e-9)
}

func TestDiffsDefaultThresholdKeepsLargeGrowth(t *testing.T) {
	// The default clamp only nulls the near-infinite artifacts of a product
	// growing from a tiny base. Large but real growth is published.
	rows := []domain.Row{
		productRow(t, "202401", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(100)),
		productRow(t, "202402", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(1200)),
		productRow(t, "202401", 1, "Umsatz", "Card B", "PP", "G1", "S1", domain.Float(1e-6)),
		productRow(t, "202402", 1, "Umsatz", "Card B", "PP", "G1", "S1", domain.Float(100000)),
	}

	p := diffPipeline(t, 1)
	out, err := p.Diffs(context.Background(), rows)
	require.NoError(t, err)

	// 1100% growth stays well below the default threshold.
	require.NotNil(t, out[1].Diff)
	assert.InDelta(t, 11.0, *out[1].Diff, 1e-9)
	// A jump of eleven orders of magnitude is an artifact and gets nulled.
	assert.Nil(t, out[3].Diff)
}

func TestDiffsDoNotCrossSeriesBoundaries(t *testing.T) {
	// Interleaved series: Card A and Card B alternate in the input. With a
	// naive unsorted lag the 1200 would be compared against Card B's 10.
	rows := []domain.Row{
		productRow(t, "202401", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(1000)),
		productRow(t, "202401", 1, "Umsatz", "Card B", "PP", "G1", "S1", domain.Float(10)),
		productRow(t, "202402", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(1200)),
		productRow(t, "202402", 1, "Umsatz", "Card B", "PP", "G1", "S1", domain.Float(12)),
	}

	p := diffPipeline(t, 1)
	out, err := p.Diffs(context.Background(), rows)
	require.NoError(t, err)

	require.NotNil(t, out[2].Diff)
	assert.InDelta(t, 0.2, *out[2].Diff, 1e-9)
	require.NotNil(t, out[3].Diff)
	assert.InDelta(t, 0.2, *out[3].Diff, 1e-9)
}

func TestDiffsStopOnCancelledContext(t *testing.T) {
	rows := []domain.Row{
		productRow(t, "202401", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(1000)),
		productRow(t, "202402", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(1200)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := diffPipeline(t, 1)
	_, err := p.Diffs(ctx, rows)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiffsPreserveRowOrder(t *testing.T) {
	rows := []domain.Row{
		productRow(t, "202402", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(1200)),
		productRow(t, "202401", 1, "Umsatz", "Card A", "CC", "G1", "S1", domain.Float(1000)),
	}

	p := diffPipeline(t, 1)
	out, err := p.Diffs(context.Background(), rows)
	require.NoError(t, err)

	// Input order is untouched; the lag is computed on dates, not on
	// physical position.
	assert.True(t, out[0].CalculationDate.Equal(date(t, "202402")))
	require.NotNil(t, out[0].Diff)
	assert.InDelta(t, 0.2, *out[0].Diff, 1e-9)
	assert.Nil(t, out[1].Diff)
}
