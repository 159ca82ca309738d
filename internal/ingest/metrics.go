package ingest

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics names as constants for consistency.
const (
	MetricDatasetsFetched     = "ingest_datasets_fetched_total"
	MetricDatasetsSkipped     = "ingest_datasets_skipped_total"
	MetricDocumentsNormalized = "ingest_documents_normalized_total"
	MetricDocumentsIndexed    = "ingest_documents_indexed_total"
	MetricDocumentsFailed     = "ingest_documents_failed_total"
	MetricArchiveFailures     = "ingest_archive_failures_total"
	MetricRunDuration         = "ingest_run_duration_seconds"
	MetricLastSuccess         = "ingest_last_success_timestamp_seconds"
)

// PushJobName is the Pushgateway job the indexer reports under.
const PushJobName = "euskotrips_indexer"

// Metrics contains Prometheus metrics for ingestion runs.
// All operations are thread-safe.
type Metrics struct {
	datasetsFetched     *prometheus.CounterVec
	datasetsSkipped     *prometheus.CounterVec
	documentsNormalized *prometheus.CounterVec
	documentsIndexed    prometheus.Counter
	documentsFailed     prometheus.Counter
	archiveFailures     prometheus.Counter
	runDuration         prometheus.Gauge
	lastSuccess         prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		datasetsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricDatasetsFetched,
			Help: "Total number of datasets downloaded and decoded",
		}, []string{"dataset"}),
		datasetsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricDatasetsSkipped,
			Help: "Total number of datasets skipped after a fetch or decode error",
		}, []string{"dataset"}),
		documentsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricDocumentsNormalized,
			Help: "Total number of features normalized into documents",
		}, []string{"dataset"}),
		documentsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDocumentsIndexed,
			Help: "Total number of documents accepted by the index",
		}),
		documentsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDocumentsFailed,
			Help: "Total number of documents rejected by the index",
		}),
		archiveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricArchiveFailures,
			Help: "Total number of raw payloads that could not be archived",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricRunDuration,
			Help: "Duration of the last ingestion run in seconds",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLastSuccess,
			Help: "Unix time of the last ingestion run without errors",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
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
		m.datasetsFetched,
		m.datasetsSkipped,
		m.documentsNormalized,
		m.documentsIndexed,
		m.documentsFailed,
		m.archiveFailures,
		m.runDuration,
		m.lastSuccess,
	}
}

// Push sends the current values to a Prometheus Pushgateway, replacing the
// previous push for the job.
func (m *Metrics) Push(ctx context.Context, gatewayURL string) error {
	pusher := push.New(gatewayURL, PushJobName)
	for _, c := range m.Collectors() {
		pusher = pusher.Collector(c)
	}
	return pusher.PushContext(ctx)
}

func (m *Metrics) incDatasetFetched(dataset string) {
	if m != nil {
		m.datasetsFetched.WithLabelValues(dataset).Inc()
	}
}

func (m *Metrics) incDatasetSkipped(dataset string) {
	if m != nil {
		m.datasetsSkipped.WithLabelValues(dataset).Inc()
	}
}

func (m *Metrics) addNormalized(dataset string, n int) {
	if m != nil {
		m.documentsNormalized.WithLabelValues(dataset).Add(float64(n))
	}
}

func (m *Metrics) addBulkResult(indexed, failed int) {
	if m != nil {
		m.documentsIndexed.Add(float64(indexed))
		m.documentsFailed.Add(float64(failed))
	}
}

func (m *Metrics) incArchiveFailures() {
	if m != nil {
		m.archiveFailures.Inc()
	}
}

func (m *Metrics) observeRun(seconds float64, success bool, unixNow float64) {
	if m == nil {
		return
	}
	m.runDuration.Set(seconds)
	if success {
		m.lastSuccess.Set(unixNow)
	}
}
