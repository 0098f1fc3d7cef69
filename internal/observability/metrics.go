package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "water_globe"

// Metrics holds the Prometheus counters, histograms, and gauges for the refresh pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge

	// Fetch metrics.
	FetchRequests *prometheus.CounterVec // labels: outcome={success,error}
	FetchDuration prometheus.Histogram
	RowsFetched   prometheus.Counter

	// Load metrics.
	Refreshes      *prometheus.CounterVec // labels: outcome={success,error}
	RefreshLatency prometheus.Histogram
	CountiesLoaded prometheus.Gauge
	EntitiesLoaded prometheus.Gauge
	LastLoadTime   prometheus.Gauge

	// Outlet metrics.
	EntitiesPublished prometheus.Counter
	PublishErrors     prometheus.Counter
	SnapshotErrors    prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.PipelineRunning,
		m.FetchRequests,
		m.FetchDuration,
		m.RowsFetched,
		m.Refreshes,
		m.RefreshLatency,
		m.CountiesLoaded,
		m.EntitiesLoaded,
		m.LastLoadTime,
		m.EntitiesPublished,
		m.PublishErrors,
		m.SnapshotErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they need without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "SQL API requests by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "SQL API request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RowsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_fetched_total",
			Help:      "Total rows returned by the SQL API.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		RefreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-transform-load cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		CountiesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "counties_loaded",
			Help:      "Number of counties in the current dataset.",
		}),
		EntitiesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entities_loaded",
			Help:      "Number of entities in the current dataset.",
		}),
		LastLoadTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_load_timestamp_seconds",
			Help:      "Unix time of the last successful load.",
		}),
		EntitiesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_published_total",
			Help:      "Total entity messages written to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total failed entity publish batches.",
		}),
		SnapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_errors_total",
			Help:      "Total failed snapshot writes.",
		}),
	}
}
