package domain

import (
	"time"
)

// PeriodKind distinguishes the semantics of a monthly measurement.
type PeriodKind int

const (
	// PeriodKindSnapshot is a month-end snapshot value (e.g. open accounts).
	PeriodKindSnapshot PeriodKind = 1
	// PeriodKindMonthly is a value aggregated over the whole month (e.g. turnover).
	PeriodKindMonthly PeriodKind = 2
)

// Level is the hierarchy depth of a measurement row.
type Level int

const (
	LevelOverall Level = 0
	LevelSector  Level = 1
	LevelGroup   Level = 2
	LevelProduct Level = 3
)

// CardProfileAll marks rows that aggregate over all card profiles.
const CardProfileAll = "all"

// OverallLabel is the entity/group/sector name used for the top hierarchy level.
const OverallLabel = "Overall"

// RawRow is one measurement as delivered by the raw source: one row per
// (period, product, metric), before any normalization or categorization.
type RawRow struct {
	PeriodCode  string   `db:"period_code" csv:"period_code" validate:"required,len=6,numeric"`
	MetricID    int      `db:"kpi_id" csv:"kpi_id" validate:"required,gt=0"`
	MetricName  string   `db:"kpi_name" csv:"kpi_name" validate:"required"`
	PeriodKind  int      `db:"period_id" csv:"period_id" validate:"required,oneof=1 2"`
	ProductName string   `db:"product_name" csv:"product_name" validate:"required"`
	CardProfile string   `db:"cardprofile" csv:"cardprofile"`
	Value       *float64 `db:"value" csv:"value"`
}

// Row is the atomic unit of the processed dataset. Level 3 rows originate
// from the raw source; levels 0-2 are synthesized by the aggregator.
// Value, ValueAvg and Diff are nil where no measurement exists.
type Row struct {
	CalculationDate time.Time  `json:"calculation_date"`
	MetricID        int        `json:"kpi_id"`
	MetricName      string     `json:"kpi_name"`
	PeriodKind      PeriodKind `json:"period_id"`
	EntityName      string     `json:"product_name"`
	CardProfile     string     `json:"cardprofile"`
	GroupName       string     `json:"mandant"`
	SectorName      string     `json:"sector"`
	Level           Level      `json:"level"`
	Value           *float64   `json:"value"`
	ValueAvg        *float64   `json:"value_avg"`
	Diff            *float64   `json:"diff_value,omitempty"`
}

// EntityKey identifies one logical series. For a fixed key there is exactly
// one row per calculation date in the processing window after expansion.
type EntityKey struct {
	MetricID    int
	MetricName  string
	PeriodKind  PeriodKind
	EntityName  string
	CardProfile string
	GroupName   string
	SectorName  string
	Level       Level
}

// Key returns the entity key of the row (everything except date and values).
func (r Row) Key() EntityKey {
	return EntityKey{
		MetricID:    r.MetricID,
		MetricName:  r.MetricName,
		PeriodKind:  r.PeriodKind,
		EntityName:  r.EntityName,
		CardProfile: r.CardProfile,
		GroupName:   r.GroupName,
		SectorName:  r.SectorName,
		Level:       r.Level,
	}
}

// OutputColumns is the fixed column order of the published artifact.
// Positional renaming after reshapes is never relied on; the exporter
// builds each record from named fields in exactly this order.
var OutputColumns = []string{
	"calculation_date",
	"kpi_name",
	"period_id",
	"product_name",
	"cardprofile",
	"mandant",
	"sector",
	"level",
	"value",
	"value_avg",
}

// Float returns a pointer to v, for building nullable values in place.
func Float(v float64) *float64 { return &v }

// MonthEnd normalizes t to the last day of its month, preserving UTC.
func MonthEnd(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}
