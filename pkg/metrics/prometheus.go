// Package metrics provides Prometheus metrics for the bridge service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the bridge.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Inbound sensor session
	framesDecoded    prometheus.Counter
	parseErrors      prometheus.Counter
	heartbeats       prometheus.Counter
	handshakes       prometheus.Counter
	sessionsClosed   *prometheus.CounterVec
	sessionsRejected prometheus.Counter
	sessionActive    prometheus.Gauge

	// Enrichment
	shotsEnriched      prometheus.Counter
	enrichmentFailures prometheus.Counter
	enrichmentLatency  prometheus.Histogram

	// Pipeline queue
	queueDepth   prometheus.Gauge
	queueDropped prometheus.Counter

	// Dashboard publisher
	publishes           prometheus.Counter
	publishErrors       prometheus.Counter
	publisherReconnects prometheus.Counter
	publisherConnected  prometheus.Gauge
	sourcesEnsured      prometheus.Counter

	// Shot history store
	shotsStored prometheus.Counter
	storeErrors prometheus.Counter

	// Broadcast fan-out
	broadcasts      prometheus.Counter
	broadcastErrors prometheus.Counter

	// Status HTTP server
	httpRequests *prometheus.CounterVec

	// Process health
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance on a custom registry, so the default Go
// collectors do not leak in.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// GetRegistry returns the registry backing the global manager, for promhttp.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ogc",
		subsystem:        "bridge",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.framesDecoded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "frames_decoded_total",
		Help: "Shot frames successfully decoded from the launch monitor",
	})
	m.parseErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "frame_parse_errors_total",
		Help: "Malformed or invalid inbound frames dropped",
	})
	m.heartbeats = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "heartbeats_total",
		Help: "Heartbeat frames received from the launch monitor",
	})
	m.handshakes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "handshakes_total",
		Help: "Completed launch monitor handshakes",
	})
	m.sessionsClosed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_closed_total",
		Help: "Sessions closed, by reason",
	}, []string{"reason"})
	m.sessionsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_rejected_total",
		Help: "Inbound connections refused while a session was active",
	})
	m.sessionActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "session_active",
		Help: "1 while a launch monitor session is active",
	})

	m.shotsEnriched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "shots_enriched_total",
		Help: "Shots enriched with calculator-derived metrics",
	})
	m.enrichmentFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "enrichment_failures_total",
		Help: "Calculator errors or timeouts that degraded a shot",
	})
	m.enrichmentLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "enrichment_latency_ms",
		Help:    "Calculator round-trip latency in milliseconds",
		Buckets: m.histogramBuckets,
	})

	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "pipeline_queue_depth",
		Help: "Decoded frames waiting for the enrichment pipeline",
	})
	m.queueDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "pipeline_queue_dropped_total",
		Help: "Frames dropped because the pipeline queue was full",
	})

	m.publishes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dashboard_publishes_total",
		Help: "Batches published to the display host",
	})
	m.publishErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dashboard_publish_errors_total",
		Help: "Failed publish attempts to the display host",
	})
	m.publisherReconnects = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dashboard_reconnects_total",
		Help: "Reconnection attempts to the display host",
	})
	m.publisherConnected = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dashboard_connected",
		Help: "1 while the display host connection is up",
	})
	m.sourcesEnsured = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dashboard_sources_ensured_total",
		Help: "Display sources created or confirmed present",
	})

	m.shotsStored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "shots_stored_total",
		Help: "Shots recorded in the history store",
	})
	m.storeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_errors_total",
		Help: "Shot history store failures",
	})

	m.broadcasts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcasts_total",
		Help: "Enriched shots broadcast to the message bus",
	})
	m.broadcastErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_errors_total",
		Help: "Failed message bus publishes",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "Status server requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_memory_bytes",
		Help: "Current heap allocation in bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_goroutines",
		Help: "Current number of goroutines",
	})
}

// Package-level helpers against the global manager.

func RecordFrameDecoded() { globalManager.framesDecoded.Inc() }

func RecordParseError() { globalManager.parseErrors.Inc() }

func RecordHeartbeat() { globalManager.heartbeats.Inc() }

func RecordHandshake() { globalManager.handshakes.Inc() }

func RecordSessionClosed(reason string) {
	globalManager.sessionsClosed.WithLabelValues(reason).Inc()
}

func RecordSessionRejected() { globalManager.sessionsRejected.Inc() }

func UpdateSessionActive(active bool) {
	if active {
		globalManager.sessionActive.Set(1)
		return
	}
	globalManager.sessionActive.Set(0)
}

func RecordShotEnriched() { globalManager.shotsEnriched.Inc() }

func RecordEnrichmentFailure() { globalManager.enrichmentFailures.Inc() }

func RecordEnrichmentLatency(latencyMs float64) {
	globalManager.enrichmentLatency.Observe(latencyMs)
}

func UpdateQueueDepth(depth int) { globalManager.queueDepth.Set(float64(depth)) }

func RecordQueueDropped() { globalManager.queueDropped.Inc() }

func RecordPublish() { globalManager.publishes.Inc() }

func RecordPublishError() { globalManager.publishErrors.Inc() }

func RecordPublisherReconnect() { globalManager.publisherReconnects.Inc() }

func UpdatePublisherConnected(connected bool) {
	if connected {
		globalManager.publisherConnected.Set(1)
		return
	}
	globalManager.publisherConnected.Set(0)
}

func RecordSourcesEnsured(count int) {
	globalManager.sourcesEnsured.Add(float64(count))
}

func RecordShotStored() { globalManager.shotsStored.Inc() }

func RecordStoreError() { globalManager.storeErrors.Inc() }

func RecordBroadcast() { globalManager.broadcasts.Inc() }

func RecordBroadcastError() { globalManager.broadcastErrors.Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}
