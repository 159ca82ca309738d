package ranking

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRequests         = "ranking_requests_total"
	MetricErrors           = "ranking_errors_total"
	MetricRequestDuration  = "ranking_request_duration_seconds"
	MetricExcludedFavorite = "ranking_favorites_excluded_total"
	MetricPoolFallbacks    = "ranking_pool_fallbacks_total"
	MetricEmptyProfiles    = "ranking_empty_profiles_total"
)

// Metrics contains Prometheus metrics for the ranker.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	errors          prometheus.Counter
	requestDuration *prometheus.HistogramVec
	excluded        prometheus.Counter
	poolFallbacks   prometheus.Counter
	emptyProfiles   prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRequests,
			Help: "Total number of ranking requests by result mode",
		}, []string{"mode"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricErrors,
			Help: "Total number of ranking requests that failed on an upstream store",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRequestDuration,
			Help:    "Ranking latency in seconds by result mode",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"mode"}),
		excluded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricExcludedFavorite,
			Help: "Total number of candidates dropped because the user already favorited them",
		}),
		poolFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPoolFallbacks,
			Help: "Total number of personalized requests that fell back to the unfiltered pool",
		}),
		emptyProfiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricEmptyProfiles,
			Help: "Total number of personalized requests whose favorites carried no category, municipality or territory",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.errors,
		m.requestDuration,
		m.excluded,
		m.poolFallbacks,
		m.emptyProfiles,
	}
}

func (m *Metrics) observeRequest(mode string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(mode).Inc()
	m.requestDuration.WithLabelValues(mode).Observe(seconds)
}

func (m *Metrics) incErrors() {
	if m == nil {
		return
	}
	m.errors.Inc()
}

func (m *Metrics) addExcluded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.excluded.Add(float64(n))
}

func (m *Metrics) incPoolFallbacks() {
	if m == nil {
		return
	}
	m.poolFallbacks.Inc()
}

func (m *Metrics) incEmptyProfiles() {
	if m == nil {
		return
	}
	m.emptyProfiles.Inc()
}
