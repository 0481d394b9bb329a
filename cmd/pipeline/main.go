// Command pipeline runs one batch execution of the KPI preprocessing
// pipeline: fetch raw rows, transform, validate, publish.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kpiflow/internal/config"
	"kpiflow/internal/exporter"
	"kpiflow/internal/infrastructure"
	"kpiflow/internal/metrics"
	"kpiflow/internal/pipeline"
	"kpiflow/internal/source"
	"kpiflow/internal/validation"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	outputFile := flag.String("out", "", "output artifact path (overrides config)")
	rawFile := flag.String("raw", "", "raw input file for csv/excel sources (overrides config)")
	exportExcel := flag.Bool("export-excel", false, "additionally export the dataset as an Excel workbook")
	metricsAddr := flag.String("metrics-addr", "", "serve prometheus metrics on this address during the run")
	flag.Parse()

	// A .env next to the binary is a convenience for local runs.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *outputFile != "" {
		cfg.Paths.OutputFile = *outputFile
	}
	if *rawFile != "" {
		cfg.Source.RawFile = *rawFile
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	registry := prometheus.NewRegistry()
	m := metrics.NewPipeline(registry)
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics endpoint stopped", "error", err)
			}
		}()
	}

	if err := run(cfg, logger, m, *exportExcel); err != nil {
		m.RunsTotal.WithLabelValues("failed").Inc()
		logger.Error("Pipeline run failed", "error", err)
		os.Exit(1)
	}
	m.RunsTotal.WithLabelValues("succeeded").Inc()
}

func run(cfg *config.Config, logger *slog.Logger, m *metrics.Pipeline, exportExcel bool) error {
	runID := uuid.New().String()
	runLogger := logger.With(slog.String("run_id", runID))
	ctx := infrastructure.WithRunID(context.Background(), runID)

	ref, err := config.LoadReference(cfg.Paths.ReferenceFile)
	if err != nil {
		return err
	}

	src, err := source.New(cfg.Source, runLogger)
	if err != nil {
		return err
	}
	if closer, ok := src.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	raw, err := src.Fetch(ctx, cfg.Pipeline.LookbackYears)
	if err != nil {
		return err
	}

	usable, err := source.UsableYears(raw)
	if err != nil {
		return err
	}
	if usable < cfg.Pipeline.LookbackYears {
		runLogger.WarnContext(ctx, "fetched history shorter than requested window",
			slog.Int("requested_years", cfg.Pipeline.LookbackYears),
			slog.Int("usable_years", usable))
	}

	rows, err := pipeline.New(cfg.Pipeline, ref, runLogger, m).Run(ctx, raw)
	if err != nil {
		return err
	}

	report, err := validation.New(ref.Expected, runLogger).Validate(ctx, rows)
	if err != nil {
		return err
	}
	m.ValidationWarnings.Add(float64(len(report.Warnings)))

	// The sink runs only after every check has passed: a failed run leaves
	// no partial artifact behind.
	writer := exporter.NewCSVWriter(cfg.Paths.OutputFile, cfg.Paths.ArchiveDir, runLogger)
	if err := writer.Write(ctx, rows); err != nil {
		return err
	}

	if exportExcel {
		if _, err := exporter.NewExcelExporter(cfg.Paths.ExportDir, runLogger).Export(ctx, rows, time.Now()); err != nil {
			return err
		}
	}
	return nil
}
