// Package metrics provides Prometheus metrics for the proctoring pipeline and collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Subsystem names used to group metrics.
const (
	subsystemPipeline  = "pipeline"
	subsystemSink      = "sink"
	subsystemCollector = "collector"
	subsystemSystem    = "system"
)

// Manager manages all Prometheus metrics for the proctor binaries.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Pipeline metrics - per tick inference and event derivation
	ticksTotal       prometheus.Counter
	tickDuration     prometheus.Histogram
	objectSamples    prometheus.Counter
	candidatesTotal  *prometheus.CounterVec
	eventsAdmitted   *prometheus.CounterVec
	eventsSuppressed *prometheus.CounterVec
	headYaw          prometheus.Gauge
	faceDistance     prometheus.Gauge
	audioLevel       prometheus.Gauge
	speechActive     prometheus.Gauge
	faceCount        prometheus.Gauge
	sessionState     prometheus.Gauge
	detectorFailures *prometheus.CounterVec
	capabilityState  *prometheus.GaugeVec

	// Sink metrics - outbound delivery to the collector
	sinkDelivered prometheus.Counter
	sinkFailed    prometheus.Counter
	sinkDropped   prometheus.Counter
	sinkLatency   prometheus.Histogram
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueUtil     prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueDequeued prometheus.Counter
	queueRejected prometheus.Counter
	workerActive  prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	// Collector metrics
	eventsRecorded      *prometheus.CounterVec
	eventsStored        prometheus.Gauge
	streamClients       prometheus.Gauge
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByComponent   *prometheus.CounterVec
	errorsByEndpoint    *prometheus.CounterVec

	// System Performance Metrics
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
		namespace:        "proctor",
		histogramBuckets: []float64{1, 2, 5, 10, 16, 25, 33, 50, 100, 250, 500, 1000, 2500},
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(subsystem, name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(subsystem, name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(subsystem, name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.ticksTotal = m.counter(subsystemPipeline, "ticks_total", "Total number of inference ticks executed")
	m.tickDuration = m.histogram(subsystemPipeline, "tick_duration_milliseconds", "Duration of one inference tick in milliseconds", m.histogramBuckets)
	m.objectSamples = m.counter(subsystemPipeline, "object_samples_total", "Total number of object-detector samples consumed")
	m.candidatesTotal = m.counterVec(subsystemPipeline, "candidates_total", "Candidate events derived, by key", "key")
	m.eventsAdmitted = m.counterVec(subsystemPipeline, "events_admitted_total", "Events admitted by the throttle, by key and severity", "key", "severity")
	m.eventsSuppressed = m.counterVec(subsystemPipeline, "events_suppressed_total", "Events suppressed by the cooldown window, by key", "key")
	m.headYaw = m.gauge(subsystemPipeline, "head_yaw_degrees", "Latest head yaw estimate of the primary face")
	m.faceDistance = m.gauge(subsystemPipeline, "face_distance_centimeters", "Latest distance estimate of the primary face")
	m.audioLevel = m.gauge(subsystemPipeline, "audio_level_ratio", "Latest display audio level (0..1)")
	m.speechActive = m.gauge(subsystemPipeline, "speech_active", "1 while the audio classifier is in the speech state")
	m.faceCount = m.gauge(subsystemPipeline, "face_count", "Number of faces detected in the latest tick")
	m.sessionState = m.gauge(subsystemPipeline, "session_state", "Session state (0 idle, 1 starting, 2 active, 3 error)")
	m.detectorFailures = m.counterVec(subsystemPipeline, "detector_failures_total", "Per-call detector failures, by detector", "detector")
	m.capabilityState = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: subsystemPipeline, Name: "capability_state",
		Help: "Detector capability state (0 unloaded, 1 loading, 2 ready, 3 failed)", ConstLabels: m.constLabels,
	}, []string{"capability"})

	m.sinkDelivered = m.counter(subsystemSink, "delivered_total", "Events delivered to the collector")
	m.sinkFailed = m.counter(subsystemSink, "failed_total", "Events whose delivery failed (not retried)")
	m.sinkDropped = m.counter(subsystemSink, "dropped_total", "Events dropped because the outbox was full or closed")
	m.sinkLatency = m.histogram(subsystemSink, "delivery_latency_milliseconds", "Collector round-trip latency in milliseconds", m.histogramBuckets)
	m.queueSize = m.gauge(subsystemSink, "queue_size", "Current number of events waiting in the outbox")
	m.queueCapacity = m.gauge(subsystemSink, "queue_capacity", "Maximum outbox capacity")
	m.queueUtil = m.gauge(subsystemSink, "queue_utilization_ratio", "Outbox utilization (0..1)")
	m.queueEnqueued = m.counter(subsystemSink, "queue_enqueued_total", "Events enqueued into the outbox")
	m.queueDequeued = m.counter(subsystemSink, "queue_dequeued_total", "Events dequeued from the outbox")
	m.queueRejected = m.counter(subsystemSink, "queue_rejected_total", "Enqueue attempts rejected by the outbox")
	m.workerActive = m.gauge(subsystemSink, "worker_active_count", "Number of running delivery workers")
	m.workerLatency = m.histogram(subsystemSink, "worker_processing_latency_milliseconds", "Delivery worker processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter(subsystemSink, "worker_errors_total", "Delivery worker errors")

	m.eventsRecorded = m.counterVec(subsystemCollector, "events_recorded_total", "Events stored by the collector, by kind and severity", "kind", "severity")
	m.eventsStored = m.gauge(subsystemCollector, "events_stored", "Events currently retained by the collector")
	m.streamClients = m.gauge(subsystemCollector, "stream_clients", "Connected live-stream clients")
	m.httpRequests = m.counterVec(subsystemCollector, "http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: subsystemCollector, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByComponent = m.counterVec(subsystemCollector, "errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec(subsystemCollector, "errors_by_endpoint_total", "HTTP errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge(subsystemSystem, "memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge(subsystemSystem, "goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram(subsystemSystem, "gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Pipeline Metrics Functions.

// RecordTick records one executed tick and its duration.
func RecordTick(durationMs float64) {
	globalManager.ticksTotal.Inc()
	globalManager.tickDuration.Observe(durationMs)
}

// RecordObjectSample increments the object-detector sample counter.
func RecordObjectSample() {
	globalManager.objectSamples.Inc()
}

// RecordCandidate increments the candidate counter for key.
func RecordCandidate(key string) {
	globalManager.candidatesTotal.WithLabelValues(key).Inc()
}

// RecordEventAdmitted increments the admitted counter for key.
func RecordEventAdmitted(key, severity string) {
	globalManager.eventsAdmitted.WithLabelValues(key, severity).Inc()
}

// RecordEventSuppressed increments the suppressed counter for key.
func RecordEventSuppressed(key string) {
	globalManager.eventsSuppressed.WithLabelValues(key).Inc()
}

// UpdateFaceMetrics sets the yaw and distance gauges.
func UpdateFaceMetrics(yawDeg, distanceCm float64) {
	globalManager.headYaw.Set(yawDeg)
	globalManager.faceDistance.Set(distanceCm)
}

// UpdateAudio sets the audio level and speech gauges.
func UpdateAudio(level float64, speech bool) {
	globalManager.audioLevel.Set(level)
	globalManager.speechActive.Set(boolGauge(speech))
}

// UpdateFaceCount sets the face count gauge.
func UpdateFaceCount(count int) {
	globalManager.faceCount.Set(float64(count))
}

// UpdateSessionState sets the numeric session state.
func UpdateSessionState(state int) {
	globalManager.sessionState.Set(float64(state))
}

// RecordDetectorFailure increments the failure counter for detector.
func RecordDetectorFailure(detector string) {
	globalManager.detectorFailures.WithLabelValues(detector).Inc()
}

// UpdateCapabilityState sets the numeric state of a detector capability.
func UpdateCapabilityState(capability string, state int) {
	globalManager.capabilityState.WithLabelValues(capability).Set(float64(state))
}

// Sink Metrics Functions.

// RecordSinkDelivered records a successful delivery and its latency.
func RecordSinkDelivered(latencyMs float64) {
	globalManager.sinkDelivered.Inc()
	globalManager.sinkLatency.Observe(latencyMs)
}

// RecordSinkFailed increments the failed delivery counter.
func RecordSinkFailed() {
	globalManager.sinkFailed.Inc()
}

// RecordSinkDropped increments the dropped counter.
func RecordSinkDropped() {
	globalManager.sinkDropped.Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current outbox size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum outbox capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the outbox utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtil.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError() {
	globalManager.queueRejected.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Collector Metrics Functions.

// RecordEventRecorded increments the stored-event counter.
func RecordEventRecorded(kind, severity string) {
	globalManager.eventsRecorded.WithLabelValues(kind, severity).Inc()
}

// UpdateEventsStored sets the number of retained events.
func UpdateEventsStored(count int) {
	globalManager.eventsStored.Set(float64(count))
}

// UpdateStreamClients sets the number of connected stream clients.
func UpdateStreamClients(count int) {
	globalManager.streamClients.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

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
