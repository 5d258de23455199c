// Package metrics provides Prometheus metrics for the sound-health service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets covers sub-millisecond queries up to multi-second rebuilds.
var latencyBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals

// defaultScoreBuckets spans the clamped anomaly score range.
var defaultScoreBuckets = prometheus.LinearBuckets(0, 10, 11) //nolint:gochecknoglobals

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	scoreBuckets     []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Engine
	rebuilds         *prometheus.CounterVec
	rebuildLatency   prometheus.Histogram
	samplesProcessed *prometheus.CounterVec
	samplesSkipped   *prometheus.CounterVec
	clipsScored      *prometheus.CounterVec
	anomalyScore     prometheus.Histogram
	stageLatency     *prometheus.HistogramVec
	baselinesTotal   prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "catrack",
		subsystem:        "sound",
		histogramBuckets: latencyBuckets,
		scoreBuckets:     defaultScoreBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.customLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)
	lat := m.histogramBuckets

	m.rebuilds = auto.NewCounterVec(m.counter("baseline_rebuilds_total",
		"Baseline rebuilds by outcome (success, insufficient_data, error)"), []string{"outcome"})
	m.rebuildLatency = auto.NewHistogram(m.histogram("baseline_rebuild_duration_milliseconds",
		"Wall time of a full rebuild including every clip", lat))
	m.samplesProcessed = auto.NewCounterVec(m.counter("samples_processed_total",
		"Catalog samples turned into fingerprints, by label"), []string{"label"})
	m.samplesSkipped = auto.NewCounterVec(m.counter("samples_skipped_total",
		"Catalog samples dropped from a rebuild, by reason"), []string{"reason"})
	m.clipsScored = auto.NewCounterVec(m.counter("clips_scored_total",
		"Clips scored against a baseline, by predicted label"), []string{"label"})
	m.anomalyScore = auto.NewHistogram(m.histogram("anomaly_score",
		"Distribution of anomaly scores (0-100)", m.scoreBuckets))
	m.stageLatency = auto.NewHistogramVec(m.histogram("stage_duration_milliseconds",
		"Per-clip latency of fetch, decode and extract", lat), []string{"stage"})
	m.baselinesTotal = auto.NewGauge(m.gauge("baselines_total",
		"Number of stored baselines"))

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Current number of queued clip jobs"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Maximum number of queued clip jobs"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio", "Queue size divided by capacity"))
	m.queueEnqueueRate = auto.NewCounter(m.counter("queue_enqueue_total", "Jobs accepted by the queue"))
	m.queueDequeueRate = auto.NewCounter(m.counter("queue_dequeue_total", "Jobs taken by workers"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Jobs the queue refused"))

	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Configured extraction workers"))
	m.workerActiveCount = auto.NewGauge(m.gauge("worker_active_count", "Workers currently processing a clip"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogram("worker_processing_duration_milliseconds",
		"Time a worker spends on one clip", lat))
	m.workerErrors = auto.NewCounter(m.counter("worker_errors_total", "Clips a worker could not fingerprint"))

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", lat), []string{"endpoint", "method", "status_code"})

	m.repositoryUpdateLatency = auto.NewHistogram(m.histogram("repository_update_duration_milliseconds",
		"Repository write latency", lat))
	m.repositoryQueryLatency = auto.NewHistogram(m.histogram("repository_query_duration_milliseconds",
		"Repository read latency", lat))

	m.errorRateByComponent = auto.NewCounterVec(m.counter("errors_by_component_total",
		"Errors by component and type"), []string{"component", "error_type"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counter("errors_by_endpoint_total",
		"Errors by endpoint, method and type"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogram("system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordRebuild counts a rebuild and observes its duration.
func RecordRebuild(outcome string, latencyMs float64) {
	globalManager.rebuilds.WithLabelValues(outcome).Inc()
	globalManager.rebuildLatency.Observe(latencyMs)
}

// RecordSampleProcessed counts a fingerprinted catalog sample.
func RecordSampleProcessed(label string) {
	globalManager.samplesProcessed.WithLabelValues(label).Inc()
}

// RecordSampleSkipped counts a sample dropped from a rebuild.
func RecordSampleSkipped(reason string) {
	globalManager.samplesSkipped.WithLabelValues(reason).Inc()
}

// RecordClipScored counts a scored clip and observes its score.
func RecordClipScored(label string, score float64) {
	globalManager.clipsScored.WithLabelValues(label).Inc()
	globalManager.anomalyScore.Observe(score)
}

// RecordStageLatency observes the latency of one pipeline stage.
func RecordStageLatency(stage string, latencyMs float64) {
	globalManager.stageLatency.WithLabelValues(stage).Observe(latencyMs)
}

// UpdateBaselinesTotal sets the stored baseline count.
func UpdateBaselinesTotal(count int) {
	globalManager.baselinesTotal.Set(float64(count))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRepositoryUpdateLatency records repository update operation latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository query operation latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
