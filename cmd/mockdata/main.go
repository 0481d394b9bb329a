// Command mockdata multiplies a small seed CSV into a larger synthetic raw
// dataset for fixtures and offline runs.
package main

import (
	"context"
	"flag"
	"os"

	"kpiflow/internal/infrastructure"
	"kpiflow/internal/source"
)

func main() {
	seedPath := flag.String("seed", "", "seed CSV with raw rows for a single period")
	outPath := flag.String("out", "data/mock_raw.csv", "output path for the generated CSV")
	nMetrics := flag.Int("metrics", 10, "number of metric IDs to generate")
	nPeriods := flag.Int("periods", 37, "number of monthly periods to generate")
	seed := flag.Int64("rand-seed", 42, "random seed for value variation")
	flag.Parse()

	logger := infrastructure.GetLogger()
	if *seedPath == "" {
		logger.Error("missing required -seed flag")
		os.Exit(1)
	}

	ctx := context.Background()
	src := source.NewCSVSource(*seedPath, logger)
	// A generous window keeps all seed periods.
	rows, err := src.Fetch(ctx, 100)
	if err != nil {
		logger.Error("Failed to read seed file", "error", err)
		os.Exit(1)
	}

	generated, err := source.NewGenerator(*seed).Multiply(rows, *nMetrics, *nPeriods)
	if err != nil {
		logger.Error("Failed to generate mock data", "error", err)
		os.Exit(1)
	}

	if err := source.WriteRawCSV(*outPath, generated); err != nil {
		logger.Error("Failed to write mock data", "error", err)
		os.Exit(1)
	}
	logger.Info("Mock data created", "path", *outPath, "rows", len(generated))
}
