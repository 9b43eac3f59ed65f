package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricFeedRequestsTotal     = "feed_requests_total"
	MetricFeedEmptyTotal        = "feed_empty_total"
	MetricFeedPipelineDuration  = "feed_pipeline_duration_seconds"
	MetricFeedCandidatePoolSize = "feed_candidate_pool_size"
	MetricEngagementsClassified = "engagements_classified_total"
)

// Metrics contains Prometheus metrics for the ranking pipeline.
// All operations are thread-safe.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	emptyTotal       *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	poolSize         prometheus.Histogram
	classifications  *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a
// registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFeedRequestsTotal,
			Help: "Total number of feed ranking requests by policy",
		}, []string{"policy"}),
		emptyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFeedEmptyTotal,
			Help: "Total number of feed requests that returned an empty feed",
		}, []string{"policy"}),
		pipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricFeedPipelineDuration,
			Help:    "Histogram of feed pipeline duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"policy"}),
		poolSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFeedCandidatePoolSize,
			Help:    "Histogram of candidate pool sizes before fusion",
			Buckets: []float64{0, 5, 10, 20, 40, 80, 160},
		}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricEngagementsClassified,
			Help: "Total number of engagement events classified by normalized action",
		}, []string{"action"}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.requestsTotal,
		m.emptyTotal,
		m.pipelineDuration,
		m.poolSize,
		m.classifications,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRequest records one completed feed request.
func (m *Metrics) ObserveRequest(policy string, seconds float64, empty bool) {
	m.requestsTotal.WithLabelValues(policy).Inc()
	m.pipelineDuration.WithLabelValues(policy).Observe(seconds)
	if empty {
		m.emptyTotal.WithLabelValues(policy).Inc()
	}
}

// ObservePoolSize records the candidate pool size for one request.
func (m *Metrics) ObservePoolSize(size int) {
	m.poolSize.Observe(float64(size))
}

// IncClassification counts one classified engagement event.
func (m *Metrics) IncClassification(action string) {
	m.classifications.WithLabelValues(action).Inc()
}
