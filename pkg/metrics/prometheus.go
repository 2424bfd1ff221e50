// Package metrics provides Prometheus metrics for the podium leaderboard
// service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Submission pipeline
	submissionLatency  prometheus.Histogram
	submissionOutcomes *prometheus.CounterVec
	submissionsFlagged prometheus.Counter

	// Board store
	boardUpdateLatency prometheus.Histogram
	boardQueryLatency  prometheus.Histogram

	// Registry lifecycle
	activeBoards  prometheus.Gauge
	boardsPurged  prometheus.Counter
	sweepExpired  prometheus.Counter
	sweepPurged   prometheus.Counter
	sweepDuration prometheus.Histogram

	// Read queries
	queryLatency *prometheus.HistogramVec

	// Submission queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueDequeues    prometheus.Counter
	queueEnqueueErrs *prometheus.CounterVec

	// Workers
	workerCount   prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	// Notifications
	notifyDelivered prometheus.Counter
	notifyDropped   prometheus.Counter
	notifyErrors    prometheus.Counter
	notifyDepth     prometheus.Gauge

	// WebSocket fan-out
	wsConnections prometheus.Gauge
	wsDropped     prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors by component
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "podium",
		subsystem:        "leaderboard",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // metric declarations
	auto := promauto.With(m.registry)

	m.submissionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submission_latency_milliseconds",
		Help:      "Histogram of end-to-end submission latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.submissionOutcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submission_outcomes_total",
		Help:      "Total submissions by final outcome",
	}, []string{"outcome"})
	m.submissionsFlagged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submissions_flagged_total",
		Help:      "Total accepted submissions flagged as suspicious",
	})

	m.boardUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "board_update_latency_milliseconds",
		Help:      "Histogram of board upsert latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.boardQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "board_query_latency_milliseconds",
		Help:      "Histogram of board read latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.activeBoards = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_boards",
		Help:      "Current number of boards held by the registry",
	})
	m.boardsPurged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "boards_purged_total",
		Help:      "Total boards removed after their retention elapsed",
	})
	m.sweepExpired = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sweep_expired_total",
		Help:      "Total boards marked expired by lifecycle sweeps",
	})
	m.sweepPurged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sweep_purged_total",
		Help:      "Total boards purged by lifecycle sweeps",
	})
	m.sweepDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sweep_duration_milliseconds",
		Help:      "Histogram of lifecycle sweep duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.queryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "query_latency_milliseconds",
		Help:      "Histogram of read query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"operation"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the submission queue",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Configured capacity of the submission queue",
	})
	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueues_total",
		Help:      "Total submissions accepted by the queue",
	})
	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeues_total",
		Help:      "Total submissions handed to workers",
	})
	m.queueEnqueueErrs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total rejected enqueues by reason",
	}, []string{"reason"})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Current number of submission workers",
	})
	m.workerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Histogram of worker processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total worker processing failures",
	})

	m.notifyDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notify_delivered_total",
		Help:      "Total rank change events delivered to sinks",
	})
	m.notifyDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notify_dropped_total",
		Help:      "Total rank change events dropped on overflow",
	})
	m.notifyErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notify_errors_total",
		Help:      "Total sink delivery failures",
	})
	m.notifyDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notify_depth",
		Help:      "Current depth of the notification buffer",
	})

	m.wsConnections = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_connections",
		Help:      "Current number of WebSocket connections",
	})
	m.wsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_dropped_total",
		Help:      "Total WebSocket frames dropped on slow clients",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by endpoint, method, and status",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Histogram of HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_component_total",
		Help:      "Total errors by component and type",
	}, []string{"component", "error_type"})
}

// ObserveSubmission starts a submission latency observation. Call the
// returned function when the submission completes.
func ObserveSubmission() func() {
	start := time.Now()
	return func() {
		globalManager.submissionLatency.Observe(float64(time.Since(start).Milliseconds()))
	}
}

// RecordSubmissionOutcome counts a submission's final outcome.
func RecordSubmissionOutcome(outcome string) {
	globalManager.submissionOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSubmissionFlagged counts an accepted-but-suspicious submission.
func RecordSubmissionFlagged() {
	globalManager.submissionsFlagged.Inc()
}

// ObserveBoardUpdate starts a board upsert latency observation.
func ObserveBoardUpdate() func() {
	start := time.Now()
	return func() {
		globalManager.boardUpdateLatency.Observe(float64(time.Since(start).Milliseconds()))
	}
}

// ObserveBoardQuery starts a board read latency observation.
func ObserveBoardQuery() func() {
	start := time.Now()
	return func() {
		globalManager.boardQueryLatency.Observe(float64(time.Since(start).Milliseconds()))
	}
}

// UpdateActiveBoards sets the current board count.
func UpdateActiveBoards(n int) {
	globalManager.activeBoards.Set(float64(n))
}

// RecordBoardPurged counts a purged board.
func RecordBoardPurged() {
	globalManager.boardsPurged.Inc()
}

// RecordSweep records the outcome of one lifecycle sweep.
func RecordSweep(expired, purged int, durationMs float64) {
	globalManager.sweepExpired.Add(float64(expired))
	globalManager.sweepPurged.Add(float64(purged))
	globalManager.sweepDuration.Observe(durationMs)
}

// ObserveQuery starts a read query latency observation for an operation.
func ObserveQuery(operation string) func() {
	start := time.Now()
	return func() {
		globalManager.queryLatency.WithLabelValues(operation).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the configured queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted enqueue.
func RecordQueueEnqueue() {
	globalManager.queueEnqueues.Inc()
}

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() {
	globalManager.queueDequeues.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue by reason.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrs.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError counts a worker processing failure.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordNotifyDelivered counts a delivered rank change event.
func RecordNotifyDelivered() {
	globalManager.notifyDelivered.Inc()
}

// RecordNotifyDropped counts a dropped rank change event.
func RecordNotifyDropped() {
	globalManager.notifyDropped.Inc()
}

// RecordNotifyError counts a sink delivery failure.
func RecordNotifyError() {
	globalManager.notifyErrors.Inc()
}

// UpdateNotifyDepth sets the current notification buffer depth.
func UpdateNotifyDepth(depth int) {
	globalManager.notifyDepth.Set(float64(depth))
}

// UpdateWSConnections sets the current WebSocket connection count.
func UpdateWSConnections(n int) {
	globalManager.wsConnections.Set(float64(n))
}

// RecordWSDropped counts a dropped WebSocket frame.
func RecordWSDropped() {
	globalManager.wsDropped.Inc()
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, status string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(durationMs)
}

// RecordErrorByComponent counts an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry for serving /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
