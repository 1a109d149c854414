package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sire_dashboard"

// Metrics holds the Prometheus collectors for dataset loading and rendering.
type Metrics struct {
	// Dataset loading.
	SnapshotLoads        *prometheus.CounterVec // labels: outcome={success,error,unchanged}
	SnapshotLoadDuration prometheus.Histogram
	SnapshotRecords      *prometheus.GaugeVec   // labels: kind={indicators,glossary,boundaries}
	RowsLoaded           prometheus.Counter
	RowsDropped          *prometheus.CounterVec // labels: reason={duplicate,incomplete,non_numeric}
	SourceCache          *prometheus.CounterVec // labels: source, result={hit,miss}
	DatasetReady         prometheus.Gauge

	// Rendering.
	RenderRequests    *prometheus.CounterVec   // labels: view, outcome={success,error,no_data}
	RenderDuration    *prometheus.HistogramVec // labels: view
	ChartCache        *prometheus.CounterVec   // labels: result={hit,miss}
	AggregationErrors prometheus.Counter

	SnapshotsPublished prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SnapshotLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_loads_total",
			Help:      "Dataset load attempts by outcome.",
		}, []string{"outcome"}),
		SnapshotLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_load_duration_seconds",
			Help:      "Duration of loading and normalizing all data sources.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		SnapshotRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_records",
			Help:      "Records held by the current snapshot.",
		}, []string{"kind"}),
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Indicator rows kept after normalization and scoping.",
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Indicator rows discarded during normalization.",
		}, []string{"reason"}),
		SourceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_cache_total",
			Help:      "Source cache lookups by source and result.",
		}, []string{"source", "result"}),
		DatasetReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_ready",
			Help:      "1 once a snapshot has been loaded, 0 before.",
		}),
		RenderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_requests_total",
			Help:      "Render cycles by view and outcome.",
		}, []string{"view", "outcome"}),
		RenderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Duration of a filter, aggregate and display cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"view"}),
		ChartCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chart_cache_total",
			Help:      "Rendered chart cache lookups by result.",
		}, []string{"result"}),
		AggregationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_config_errors_total",
			Help:      "Region renders rejected by an invalid operation table.",
		}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Aggregated region records published to Kafka.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SnapshotLoads,
		m.SnapshotLoadDuration,
		m.SnapshotRecords,
		m.RowsLoaded,
		m.RowsDropped,
		m.SourceCache,
		m.DatasetReady,
		m.RenderRequests,
		m.RenderDuration,
		m.ChartCache,
		m.AggregationErrors,
		m.SnapshotsPublished,
	}
}
