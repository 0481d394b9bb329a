package source

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"kpiflow/pkg/contracts/domain"
)

// Generator multiplies a small seed row set into a larger synthetic raw
// dataset: clones across additional metric IDs and earlier periods with
// randomized values. Used for fixtures and load testing when no database
// is reachable.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator with a fixed seed, so fixtures are
// reproducible.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Multiply expands the seed rows to nMetrics metric IDs and nPeriods
// consecutive months, the seed's newest period being the last.
func (g *Generator) Multiply(seed []domain.RawRow, nMetrics, nPeriods int) ([]domain.RawRow, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("seed row set is empty")
	}

	// Clone across metric IDs first, keeping the seed metric as ID 1.
	byMetric := make([]domain.RawRow, 0, len(seed)*nMetrics)
	for m := 1; m <= nMetrics; m++ {
		for _, row := range seed {
			clone := row
			clone.MetricID = m
			if m > 1 {
				clone.MetricName = fmt.Sprintf("%s %d", row.MetricName, m)
			}
			byMetric = append(byMetric, clone)
		}
	}

	newest, err := time.ParseInLocation("200601", byMetric[0].PeriodCode, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse seed period code %q: %w", byMetric[0].PeriodCode, err)
	}

	out := make([]domain.RawRow, 0, len(byMetric)*nPeriods)
	for p := 0; p < nPeriods; p++ {
		period := newest.AddDate(0, -p, 0).Format("200601")
		for _, row := range byMetric {
			clone := row
			clone.PeriodCode = period
			if row.Value != nil {
				clone.Value = domain.Float(*row.Value * g.randomFactor())
			}
			out = append(out, clone)
		}
	}
	return out, nil
}

// randomFactor varies a value between 80% and 110% of its seed.
func (g *Generator) randomFactor() float64 {
	return 0.8 + g.rng.Float64()*0.3
}

// WriteRawCSV writes raw rows to a CSV file readable by CSVSource.
func WriteRawCSV(path string, rows []domain.RawRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create raw file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(rawColumns); err != nil {
		return err
	}
	for _, row := range rows {
		value := ""
		if row.Value != nil {
			value = strconv.FormatFloat(*row.Value, 'f', -1, 64)
		}
		record := []string{
			row.PeriodCode,
			strconv.Itoa(row.MetricID),
			row.MetricName,
			strconv.Itoa(row.PeriodKind),
			row.ProductName,
			row.CardProfile,
			value,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}
