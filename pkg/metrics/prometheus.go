// Package metrics provides Prometheus metrics for the turf run tracker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Millisecond buckets shared by latency histograms.
var defaultBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500} //nolint:gochecknoglobals // read-only defaults

// Manager owns every Prometheus collector used by turf.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Run lifecycle
	runsStarted     prometheus.Counter
	runsEnded       *prometheus.CounterVec
	runsForceEnded  prometheus.Counter
	runDistance     prometheus.Histogram
	pointsAdded     prometheus.Counter
	pointsRejected  *prometheus.CounterVec
	duplicatePoints prometheus.Counter
	totalRuns       prometheus.Gauge

	// Leaderboards
	aggregationLatency *prometheus.HistogramVec
	publishes          *prometheus.CounterVec
	publishFailures    *prometheus.CounterVec
	connectedClients   *prometheus.GaugeVec

	// Storage
	storeLatency *prometheus.HistogramVec

	// Refresh queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "turf",
		subsystem:        "",
		histogramBuckets: defaultBuckets,
		refreshInterval:  defaultRefreshInterval,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval is how often system gauges are sampled.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.runsStarted = m.counter("runs_started_total", "Total number of runs started")
	m.runsEnded = m.counterVec("runs_ended_total", "Total number of runs ended", "territory")
	m.runsForceEnded = m.counter("runs_force_ended_total", "Open runs ended because the user started another run")
	m.runDistance = m.histogram("run_distance_meters", "Distance of ended runs in meters",
		[]float64{100, 250, 500, 1000, 2500, 5000, 10000, 21097, 42195})
	m.pointsAdded = m.counter("points_added_total", "Total number of GPS points accepted")
	m.pointsRejected = m.counterVec("points_rejected_total", "GPS points rejected", "reason")
	m.duplicatePoints = m.counter("points_duplicate_total", "Retried GPS samples dropped by sample id")
	m.totalRuns = m.gauge("runs_stored", "Number of runs in the store")

	m.aggregationLatency = m.histogramVec("leaderboard_aggregation_milliseconds",
		"Time to build one leaderboard window", m.histogramBuckets, "window")
	m.publishes = m.counterVec("leaderboard_publishes_total", "Leaderboard snapshots published", "notifier", "window")
	m.publishFailures = m.counterVec("leaderboard_publish_failures_total", "Failed leaderboard publishes", "notifier")
	m.connectedClients = m.gaugeVec("push_clients", "Connected websocket subscribers", "window")

	m.storeLatency = m.histogramVec("store_operation_milliseconds", "Run store latency",
		m.histogramBuckets, "backend", "op")

	m.queueSize = m.gauge("refresh_queue_size", "Pending leaderboard refresh events")
	m.queueCapacity = m.gauge("refresh_queue_capacity", "Capacity of the refresh queue")
	m.queueEnqueued = m.counter("refresh_queue_enqueued_total", "Refresh events enqueued")
	m.queueDequeued = m.counter("refresh_queue_dequeued_total", "Refresh events dequeued")
	m.queueEnqueueErrors = m.counter("refresh_queue_enqueue_errors_total", "Refresh events dropped by a full or closed queue")
	m.workerCount = m.gauge("refresh_workers", "Number of refresh workers")
	m.workerActiveCount = m.gauge("refresh_workers_active", "Refresh workers currently processing")
	m.workerProcessingLatency = m.histogram("refresh_processing_milliseconds",
		"Time to handle one run-ended event", m.histogramBuckets)
	m.workerErrors = m.counter("refresh_errors_total", "Refresh attempts that failed")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration",
		m.histogramBuckets, "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// RecordRunStarted increments the runs started counter.
func RecordRunStarted() {
	globalManager.runsStarted.Inc()
}

// RecordRunEnded counts an ended run and observes its distance.
func RecordRunEnded(distanceMeters float64, claimedTerritory bool) {
	label := "none"
	if claimedTerritory {
		label = "claimed"
	}
	globalManager.runsEnded.WithLabelValues(label).Inc()
	globalManager.runDistance.Observe(distanceMeters)
}

// RecordRunForceEnded counts runs ended by a newer start.
func RecordRunForceEnded() {
	globalManager.runsForceEnded.Inc()
}

// RecordPointAdded increments the accepted points counter.
func RecordPointAdded() {
	globalManager.pointsAdded.Inc()
}

// RecordPointRejected counts a rejected point by reason.
func RecordPointRejected(reason string) {
	globalManager.pointsRejected.WithLabelValues(reason).Inc()
}

// RecordDuplicatePoint counts a dropped retry.
func RecordDuplicatePoint() {
	globalManager.duplicatePoints.Inc()
}

// UpdateTotalRuns sets the stored runs gauge.
func UpdateTotalRuns(count int) {
	globalManager.totalRuns.Set(float64(count))
}

// RecordAggregationLatency observes the time to build one window.
func RecordAggregationLatency(window string, d time.Duration) {
	globalManager.aggregationLatency.WithLabelValues(window).Observe(ms(d))
}

// RecordLeaderboardPublish counts a successful publish.
func RecordLeaderboardPublish(notifier, window string) {
	globalManager.publishes.WithLabelValues(notifier, window).Inc()
}

// RecordPublishFailure counts a failed publish.
func RecordPublishFailure(notifier string) {
	globalManager.publishFailures.WithLabelValues(notifier).Inc()
}

// UpdateConnectedClients sets the subscriber gauge for window.
func UpdateConnectedClients(window string, count int) {
	globalManager.connectedClients.WithLabelValues(window).Set(float64(count))
}

// RecordStoreLatency observes one store operation.
func RecordStoreLatency(backend, op string, d time.Duration) {
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(ms(d))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency observes one handled event.
func RecordWorkerProcessingLatency(d time.Duration) {
	globalManager.workerProcessingLatency.Observe(ms(d))
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records one HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, d time.Duration) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms(d))
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// SystemRefreshInterval is the sampling period for system gauges.
func SystemRefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// GetRegistry returns the custom Prometheus registry used by turf.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
