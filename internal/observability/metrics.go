package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast production pipeline.
type Metrics struct {
	RunInProgress  prometheus.Gauge
	RunFailures    prometheus.Counter
	DatesProcessed prometheus.Counter
	DatesSkipped   prometheus.Counter // already complete on a resumed run
	MetricsGated   prometheus.Counter // dates where the observational gate failed

	// External tool execution.
	ToolRuns     *prometheus.CounterVec // labels: tool, outcome={success,error}
	ToolRetries  prometheus.Counter
	ToolDuration *prometheus.HistogramVec // labels: tool

	// Per-date workflow steps.
	StepDuration *prometheus.HistogramVec // labels: step
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunInProgress,
		m.RunFailures,
		m.DatesProcessed,
		m.DatesSkipped,
		m.MetricsGated,
		m.ToolRuns,
		m.ToolRetries,
		m.ToolDuration,
		m.StepDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "icenet_pipeline",
			Name:      "run_in_progress",
			Help:      "1 while a forecast production run is active.",
		}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "icenet_pipeline",
			Name:      "run_failures_total",
			Help:      "Total production runs that aborted with an error.",
		}),
		DatesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "icenet_pipeline",
			Name:      "dates_processed_total",
			Help:      "Total forecast dates for which all artifacts were produced.",
		}),
		DatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "icenet_pipeline",
			Name:      "dates_skipped_total",
			Help:      "Total forecast dates skipped because a resumed run found them complete.",
		}),
		MetricsGated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "icenet_pipeline",
			Name:      "metrics_gated_total",
			Help:      "Total forecast dates where metric plots were skipped for lack of observational coverage.",
		}),
		ToolRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "icenet_pipeline",
			Name:      "tool_runs_total",
			Help:      "External tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		ToolRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "icenet_pipeline",
			Name:      "tool_retries_total",
			Help:      "Total retried external tool invocations.",
		}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "icenet_pipeline",
			Name:      "tool_duration_seconds",
			Help:      "External tool run time in seconds.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"tool"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "icenet_pipeline",
			Name:      "step_duration_seconds",
			Help:      "Duration of each per-date workflow step.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}, []string{"step"}),
	}
}
