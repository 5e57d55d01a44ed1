// Package metrics provides Prometheus metrics for the epidash dashboard service.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// defaultLatencyBuckets span 0.5ms to about 4s; latencies are observed in
// milliseconds.
var defaultLatencyBuckets = prometheus.ExponentialBuckets(0.5, 2, 14)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Dataset
	datasetRows         prometheus.Gauge
	datasetCountries    prometheus.Gauge
	datasetDays         prometheus.Gauge
	datasetLoadDuration prometheus.Gauge

	// Rendering
	rendersTotal   prometheus.Counter
	renderLatency  prometheus.Histogram
	renderErrors   *prometheus.CounterVec
	renderRowsSeen prometheus.Histogram
	rendersShared  prometheus.Counter
	memoHits       prometheus.Counter
	memoMisses     prometheus.Counter
	memoSize       prometheus.Gauge
	chartRenders   *prometheus.CounterVec

	// Sessions and publication
	sessionsActive     prometheus.Gauge
	snapshotsPublished prometheus.Counter
	snapshotsStale     prometheus.Counter
	sessionsExpired    prometheus.Counter

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueCoalesced   prometheus.Counter
	queueEnqueueErrs prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "epidash",
		subsystem:        "dashboard",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.datasetRows = m.gauge("dataset_rows", "Number of records in the loaded dataset")
	m.datasetCountries = m.gauge("dataset_countries", "Number of distinct countries in the loaded dataset")
	m.datasetDays = m.gauge("dataset_days", "Number of distinct dates in the loaded dataset")
	m.datasetLoadDuration = m.gauge("dataset_load_duration_milliseconds", "Time spent loading the dataset at startup")

	m.rendersTotal = m.counter("renders_total", "Total number of full dashboard recomputations")
	m.renderLatency = m.histogram("render_latency_milliseconds", "Latency of a full dashboard recomputation", m.histogramBuckets)
	m.renderErrors = m.counterVec("render_errors_total", "Dashboard recomputations rejected by kind", "kind")
	m.renderRowsSeen = m.histogram("render_rows", "Rows selected by the filter per recomputation",
		prometheus.ExponentialBuckets(1, 4, 12))
	m.rendersShared = m.counter("renders_shared_total", "Requests served by an in-flight identical recomputation")
	m.memoHits = m.counter("memo_hits_total", "Render cache hits")
	m.memoMisses = m.counter("memo_misses_total", "Render cache misses")
	m.memoSize = m.gauge("memo_size", "Entries held by the render cache")
	m.chartRenders = m.counterVec("chart_png_renders_total", "Server-side PNG chart renders", "metric")

	m.sessionsActive = m.gauge("sessions_active", "Dashboard sessions currently tracked")
	m.snapshotsPublished = m.counter("snapshots_published_total", "Figure sets published to sessions")
	m.snapshotsStale = m.counter("snapshots_stale_total", "Renders discarded because a newer one was already published")
	m.sessionsExpired = m.counter("sessions_expired_total", "Sessions removed after the idle TTL")

	m.queueSize = m.gauge("queue_size", "Pending input changes")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the input change queue")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Input changes accepted by the queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Input changes handed to workers")
	m.queueCoalesced = m.counter("queue_coalesced_total", "Input changes replaced by a newer change for the same session")
	m.queueEnqueueErrs = m.counter("queue_enqueue_errors_total", "Input changes rejected by the queue")

	m.workerCount = m.gauge("worker_count", "Render workers running")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Time a worker spends on one input change", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Input changes a worker failed to render or publish")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint",
		"endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors",
		"component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Dataset.

// UpdateDatasetShape records the size of the loaded dataset.
func UpdateDatasetShape(rows, countries, days int) {
	globalManager.datasetRows.Set(float64(rows))
	globalManager.datasetCountries.Set(float64(countries))
	globalManager.datasetDays.Set(float64(days))
}

// RecordDatasetLoadDuration records how long the startup load took.
func RecordDatasetLoadDuration(d time.Duration) {
	globalManager.datasetLoadDuration.Set(float64(d.Milliseconds()))
}

// Rendering.

// RecordRender records a completed recomputation over rows selected records.
func RecordRender(latencyMs float64, rows int) {
	globalManager.rendersTotal.Inc()
	globalManager.renderLatency.Observe(latencyMs)
	globalManager.renderRowsSeen.Observe(float64(rows))
}

// RecordRenderError counts a rejected recomputation.
func RecordRenderError(kind string) {
	globalManager.renderErrors.WithLabelValues(kind).Inc()
}

// RecordRenderShared counts a request answered by an in-flight render.
func RecordRenderShared() {
	globalManager.rendersShared.Inc()
}

// RecordMemoHit counts a render cache hit.
func RecordMemoHit() { globalManager.memoHits.Inc() }

// RecordMemoMiss counts a render cache miss.
func RecordMemoMiss() { globalManager.memoMisses.Inc() }

// UpdateMemoSize sets the number of cached renders.
func UpdateMemoSize(size int64) {
	globalManager.memoSize.Set(float64(size))
}

// RecordChartRender counts a server-side PNG render for metric.
func RecordChartRender(metric string) {
	globalManager.chartRenders.WithLabelValues(metric).Inc()
}

// Sessions.

// UpdateSessionsActive sets the number of tracked sessions.
func UpdateSessionsActive(count int) {
	globalManager.sessionsActive.Set(float64(count))
}

// RecordSnapshotPublished counts a figure set replacing a session's previous one.
func RecordSnapshotPublished() { globalManager.snapshotsPublished.Inc() }

// RecordSnapshotStale counts a render discarded as older than the published one.
func RecordSnapshotStale() { globalManager.snapshotsStale.Inc() }

// RecordSessionsExpired counts sessions dropped by the janitor.
func RecordSessionsExpired(n int) {
	globalManager.sessionsExpired.Add(float64(n))
}

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted change.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a change handed to a worker.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueCoalesced counts a pending change replaced by a newer one.
func RecordQueueCoalesced() { globalManager.queueCoalesced.Inc() }

// RecordQueueEnqueueError counts a rejected change.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrs.Inc() }

// Workers.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of a failed operation.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Value sums every sample of the named metric family in the service
// registry. Histograms report their sample count. The name is the fully
// qualified one, e.g. "epidash_dashboard_renders_total".
func Value(name string) (float64, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrGather, err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		return total, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
}

// Enabled reports whether the manager was configured to collect.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often background gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RefreshInterval returns the refresh interval of the global manager.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }
