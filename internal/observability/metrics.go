package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_report"

// Metrics holds the Prometheus counters, histograms, and gauges for the feed
// fetcher and the load orchestrator.
type Metrics struct {
	// Fetch metrics.
	FetchRequests *prometheus.CounterVec // labels: outcome={success,invalid_url,network,parse}
	FetchDuration prometheus.Histogram
	RecordsParsed prometheus.Counter
	FeedSize      prometheus.Histogram

	// Load cycle metrics.
	LoadsStarted        prometheus.Counter
	LoadsRejected       prometheus.Counter
	LoadOutcomes        *prometheus.CounterVec // labels: outcome={data,empty,failed}
	LoadDuration        prometheus.Histogram
	LoadInFlight        prometheus.Gauge
	DiscardedDeliveries prometheus.Counter

	// Publisher metrics.
	MessagesPublished prometheus.Counter
	PublishErrors     prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates all metrics and registers them with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.RecordsParsed,
		m.FeedSize,
		m.LoadsStarted,
		m.LoadsRejected,
		m.LoadOutcomes,
		m.LoadDuration,
		m.LoadInFlight,
		m.DiscardedDeliveries,
		m.MessagesPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "USGS feed requests by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a USGS feed request including body read and parse.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
		RecordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Total earthquake records parsed from feed responses.",
		}),
		FeedSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_size",
			Help:      "Number of earthquakes per successful feed response.",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}),
		LoadsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_started_total",
			Help:      "Load cycles started.",
		}),
		LoadsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_rejected_total",
			Help:      "Load requests rejected because a cycle was already in flight.",
		}),
		LoadOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_outcomes_total",
			Help:      "Delivered load cycles by outcome.",
		}, []string{"outcome"}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of a load cycle from start to delivery.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
		LoadInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_in_flight",
			Help:      "1 while a load cycle is fetching, 0 otherwise.",
		}),
		DiscardedDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discarded_deliveries_total",
			Help:      "Load results dropped because the consumer was gone.",
		}),
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Earthquake messages written to the feed topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed writes to the feed topic.",
		}),
	}
}
