package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// aggregation pipeline.
type Metrics struct {
	RecordsHarmonized *prometheus.CounterVec // labels: sensor
	RecordsDropped    *prometheus.CounterVec // labels: sensor, reason={quality,malformed}
	RecordsUnassigned *prometheus.CounterVec // labels: sensor
	SourceFailures    *prometheus.CounterVec // labels: sensor
	RunsTotal         *prometheus.CounterVec // labels: outcome={ok,partial,failed}
	RunActive         prometheus.Gauge

	SourceDuration *prometheus.HistogramVec // labels: sensor
	RunDuration    prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsHarmonized,
		m.RecordsDropped,
		m.RecordsUnassigned,
		m.SourceFailures,
		m.RunsTotal,
		m.RunActive,
		m.SourceDuration,
		m.RunDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when multiple tests construct pipelines.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsHarmonized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fire_etl",
			Name:      "records_harmonized_total",
			Help:      "Raw records that passed harmonization, by sensor.",
		}, []string{"sensor"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fire_etl",
			Name:      "records_dropped_total",
			Help:      "Raw records dropped during harmonization, by sensor and reason.",
		}, []string{"sensor", "reason"}),
		RecordsUnassigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fire_etl",
			Name:      "records_unassigned_total",
			Help:      "Harmonized records falling outside every district, by sensor.",
		}, []string{"sensor"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fire_etl",
			Name:      "source_failures_total",
			Help:      "Sources excluded from a run (schema mismatch, fetch error, empty input).",
		}, []string{"sensor"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fire_etl",
			Name:      "runs_total",
			Help:      "Completed aggregation runs by outcome.",
		}, []string{"outcome"}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fire_etl",
			Name:      "run_active",
			Help:      "1 while an aggregation run is in progress.",
		}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fire_etl",
			Name:      "source_duration_seconds",
			Help:      "Duration of one source's fetch-harmonize-aggregate task.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"sensor"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fire_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete aggregation run.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
	}
}
