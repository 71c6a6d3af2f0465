package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sounding_edit"

// Metrics holds the Prometheus counters, histograms, and gauges for the edit service.
type Metrics struct {
	SessionsActive prometheus.Gauge
	EditsCommitted *prometheus.CounterVec // labels: variable={temperature,dewpoint}
	EditsRejected  prometheus.Counter
	Resets         prometheus.Counter

	// Prediction service metrics.
	PredictRequests *prometheus.CounterVec   // labels: endpoint={getCSV,modSounding,retrieveValue}, outcome={success,error}
	PredictDuration *prometheus.HistogramVec // labels: endpoint
	DispatchDropped prometheus.Counter
	DispatchQueued  prometheus.Gauge

	// Hover sampling metrics.
	SamplesThrottled prometheus.Counter
	SampleCache      *prometheus.CounterVec // labels: result={hit,miss}

	// Edit publishing metrics.
	EditsPublished prometheus.Counter
	PublishErrors  prometheus.Counter
	PublishEnabled prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open diagram edit sessions.",
		}),
		EditsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_committed_total",
			Help:      "Drags committed to a profile, by dragged variable.",
		}, []string{"variable"}),
		EditsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_rejected_total",
			Help:      "Drags discarded because the result violated a profile invariant.",
		}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Profiles restored to their last loaded state.",
		}),
		PredictRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predict_requests_total",
			Help:      "Prediction service requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		PredictDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "predict_request_duration_seconds",
			Help:      "Prediction service request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		DispatchDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_dropped_total",
			Help:      "Prediction jobs dropped because the dispatch queue was full.",
		}),
		DispatchQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_length",
			Help:      "Prediction jobs waiting for a worker.",
		}),
		SamplesThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_throttled_total",
			Help:      "Hover sample requests rejected by the rate limiter.",
		}),
		SampleCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sample_cache_total",
			Help:      "Hover sample cache lookups by result.",
		}, []string{"result"}),
		EditsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_published_total",
			Help:      "Edit records written to the edit topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Edit records that could not be written to the edit topic.",
		}),
		PublishEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publish_enabled",
			Help:      "1 when edit publishing is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.SessionsActive,
		m.EditsCommitted,
		m.EditsRejected,
		m.Resets,
		m.PredictRequests,
		m.PredictDuration,
		m.DispatchDropped,
		m.DispatchQueued,
		m.SamplesThrottled,
		m.SampleCache,
		m.EditsPublished,
		m.PublishErrors,
		m.PublishEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SessionsActive:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "sessions_active"}),
		EditsCommitted:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "edits_committed_total"}, []string{"variable"}),
		EditsRejected:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "edits_rejected_total"}),
		Resets:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "resets_total"}),
		PredictRequests:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "predict_requests_total"}, []string{"endpoint", "outcome"}),
		PredictDuration:  prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "predict_request_duration_seconds"}, []string{"endpoint"}),
		DispatchDropped:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "dispatch_dropped_total"}),
		DispatchQueued:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "dispatch_queue_length"}),
		SamplesThrottled: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "samples_throttled_total"}),
		SampleCache:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "sample_cache_total"}, []string{"result"}),
		EditsPublished:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "edits_published_total"}),
		PublishErrors:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "publish_errors_total"}),
		PublishEnabled:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "publish_enabled"}),
	}
}
