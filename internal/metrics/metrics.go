// Package metrics exposes prometheus instrumentation for pipeline runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the instruments recorded during a batch run.
type Pipeline struct {
	RowsIn             *prometheus.CounterVec
	RowsOut            *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	ValidationWarnings prometheus.Counter
	RunsTotal          *prometheus.CounterVec
}

// NewPipeline creates and registers the pipeline instruments.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		RowsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kpiflow",
			Name:      "stage_rows_in_total",
			Help:      "Rows entering a pipeline stage.",
		}, []string{"stage"}),
		RowsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kpiflow",
			Name:      "stage_rows_out_total",
			Help:      "Rows leaving a pipeline stage.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kpiflow",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration per pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		ValidationWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kpiflow",
			Name:      "validation_warnings_total",
			Help:      "Non-fatal distribution warnings emitted by the validator.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kpiflow",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"status"}),
	}

	if reg != nil {
		reg.MustRegister(p.RowsIn, p.RowsOut, p.StageDuration, p.ValidationWarnings, p.RunsTotal)
	}
	return p
}

// NewNopPipeline returns unregistered instruments, for tests and callers
// that do not scrape.
func NewNopPipeline() *Pipeline {
	return NewPipeline(nil)
}
