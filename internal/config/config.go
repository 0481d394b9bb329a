package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete pipeline configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Source   SourceConfig   `yaml:"source" envconfig:"SOURCE"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
}

// PipelineConfig contains the transformation parameters.
type PipelineConfig struct {
	// LookbackYears bounds how much history is requested from the source.
	LookbackYears int `yaml:"lookback_years" envconfig:"LOOKBACK_YEARS" validate:"min=1,max=3"`
	// DiffLagPeriods is the lag for the period-over-period difference;
	// 12 compares against the same month of the prior year.
	DiffLagPeriods int `yaml:"diff_lag_periods" envconfig:"DIFF_LAG_PERIODS" validate:"min=1"`
	// DiffClampThreshold nulls differences whose absolute fractional change
	// exceeds it. The default is deliberately astronomic: it only catches
	// the near-infinite artifacts of products growing from a tiny base,
	// never large but real growth.
	DiffClampThreshold float64 `yaml:"diff_clamp_threshold" envconfig:"DIFF_CLAMP_THRESHOLD" validate:"gt=0"`
	// AverageEpsilon is added to the numerator of the per-account average
	// to avoid signed-zero artifacts.
	AverageEpsilon float64 `yaml:"average_epsilon" envconfig:"AVERAGE_EPSILON"`
	// ActiveAccountsMetric is the metric whose value serves as the divisor
	// for the per-account averages.
	ActiveAccountsMetric string `yaml:"active_accounts_metric" envconfig:"ACTIVE_ACCOUNTS_METRIC" validate:"required"`
	// SumTolerance is the absolute floating-point tolerance for the
	// aggregation invariant checks.
	SumTolerance float64 `yaml:"sum_tolerance" envconfig:"SUM_TOLERANCE" validate:"gt=0"`
}

// SourceConfig describes where the raw rows come from.
type SourceConfig struct {
	// Driver selects the raw row source: "postgres", "csv" or "excel".
	Driver string `yaml:"driver" envconfig:"DRIVER" validate:"oneof=postgres csv excel"`
	// DSN is the database connection string for the postgres driver.
	DSN string `yaml:"dsn" envconfig:"DSN"`
	// QueryFile is the SQL template for the postgres driver. The template
	// carries an @n_years_back placeholder.
	QueryFile string `yaml:"query_file" envconfig:"QUERY_FILE"`
	// RawFile is the input file for the csv and excel drivers.
	RawFile string `yaml:"raw_file" envconfig:"RAW_FILE"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths for the published artifacts.
type PathsConfig struct {
	// OutputFile is the published dataset the dashboard consumes.
	OutputFile string `yaml:"output_file" envconfig:"OUTPUT_FILE"`
	// ArchiveDir receives one dated copy per run, keyed by the data's
	// maximum calculation date.
	ArchiveDir string `yaml:"archive_dir" envconfig:"ARCHIVE_DIR"`
	// ReferenceFile optionally overrides the compiled-in category reference.
	ReferenceFile string `yaml:"reference_file" envconfig:"REFERENCE_FILE"`
	// ExportDir receives optional Excel exports of the published dataset.
	ExportDir string `yaml:"export_dir" envconfig:"EXPORT_DIR"`
}

// Default returns the configuration defaults. File and environment values
// overlay these in Load.
func Default() Config {
	return Config{
		Pipeline: PipelineConfig{
			LookbackYears:        3,
			DiffLagPeriods:       12,
			DiffClampThreshold:   1e7,
			AverageEpsilon:       1e-9,
			ActiveAccountsMetric: "Anzahl aktive Konten Total",
			SumTolerance:         1e-6,
		},
		Source: SourceConfig{
			Driver:    "csv",
			QueryFile: "sql/get_results_for_kpi_sheet.sql",
			RawFile:   "data/raw_results.csv",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/pipeline.log",
		},
		Paths: PathsConfig{
			OutputFile: "data/preprocessed_results.csv",
			ArchiveDir: "data/archive",
			ExportDir:  "data/exports",
		},
	}
}

// Load builds the configuration: defaults, then an optional YAML file, then
// environment overrides (env wins), validated at the end.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := loadFromFile(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := envconfig.Process("KPI", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile overlays configuration from a YAML file.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Source.Driver == "postgres" && c.Source.DSN == "" {
		return fmt.Errorf("source driver postgres requires a DSN")
	}
	return nil
}
