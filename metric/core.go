package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the pipeline-level metrics shared by every component.
// All Record* methods are safe on a nil receiver so components can run
// without a registry.
type Metrics struct {
	// Ingestion
	EventsTotal *prometheus.CounterVec
	QueueDepth  prometheus.Gauge
	HistorySize prometheus.Gauge

	// Upload
	UploadsTotal   *prometheus.CounterVec
	UploadedEvents prometheus.Counter
	UploadRetries  prometheus.Counter
	UploadDuration prometheus.Histogram

	// Sanitizer
	Violations *prometheus.CounterVec

	// Log files
	LogFiles *prometheus.CounterVec

	// Health
	HealthCheckStatus *prometheus.GaugeVec

	// NATS
	NATSConnected      prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "events",
				Name:      "total",
				Help:      "Events seen by ingestion, by outcome (queued, filtered, truncated, evicted, disabled)",
			},
			[]string{"outcome"},
		),

		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Events waiting for upload",
			},
		),

		HistorySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "history",
				Name:      "size",
				Help:      "Events retained for log file generation",
			},
		),

		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "uploads",
				Name:      "total",
				Help:      "Upload invocations by result",
			},
			[]string{"result"},
		),

		UploadedEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "uploads",
				Name:      "events_total",
				Help:      "Events acknowledged by the collector",
			},
		),

		UploadRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "uploads",
				Name:      "retries_total",
				Help:      "Transport retries across all batches",
			},
		),

		UploadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "uploads",
				Name:      "duration_seconds",
				Help:      "Wall time of a batch upload including retries",
				Buckets:   prometheus.DefBuckets,
			},
		),

		Violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "sanitizer",
				Name:      "violations_total",
				Help:      "Security violations logged, by type and severity",
			},
			[]string{"type", "severity"},
		),

		LogFiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "logfile",
				Name:      "categories_total",
				Help:      "Log categories generated, by result (generated, dropped, downloaded)",
			},
			[]string{"result"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=degraded, 2=healthy)",
			},
			[]string{"component"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.EventsTotal,
		c.QueueDepth,
		c.HistorySize,
		c.UploadsTotal,
		c.UploadedEvents,
		c.UploadRetries,
		c.UploadDuration,
		c.Violations,
		c.LogFiles,
		c.HealthCheckStatus,
		c.NATSConnected,
		c.NATSReconnects,
		c.NATSCircuitBreaker,
	}
}

// RecordEvent increments the ingestion counter for an outcome
func (c *Metrics) RecordEvent(outcome string) {
	if c == nil {
		return
	}
	c.EventsTotal.WithLabelValues(outcome).Inc()
}

// RecordQueueDepth sets the upload queue depth
func (c *Metrics) RecordQueueDepth(n int) {
	if c == nil {
		return
	}
	c.QueueDepth.Set(float64(n))
}

// RecordHistorySize sets the retained history size
func (c *Metrics) RecordHistorySize(n int) {
	if c == nil {
		return
	}
	c.HistorySize.Set(float64(n))
}

// RecordUpload increments the upload counter for a result
func (c *Metrics) RecordUpload(result string) {
	if c == nil {
		return
	}
	c.UploadsTotal.WithLabelValues(result).Inc()
}

// RecordUploadedEvents adds acknowledged events
func (c *Metrics) RecordUploadedEvents(n int) {
	if c == nil {
		return
	}
	c.UploadedEvents.Add(float64(n))
}

// RecordRetry increments the retry counter
func (c *Metrics) RecordRetry() {
	if c == nil {
		return
	}
	c.UploadRetries.Inc()
}

// RecordUploadDuration observes the wall time of one upload
func (c *Metrics) RecordUploadDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.UploadDuration.Observe(d.Seconds())
}

// RecordViolation increments the violation counter
func (c *Metrics) RecordViolation(violationType, severity string) {
	if c == nil {
		return
	}
	c.Violations.WithLabelValues(violationType, severity).Inc()
}

// RecordLogFiles adds n categories under a result label
func (c *Metrics) RecordLogFiles(result string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.LogFiles.WithLabelValues(result).Add(float64(n))
}

// RecordHealthStatus updates health check status (0=unhealthy, 1=degraded, 2=healthy)
func (c *Metrics) RecordHealthStatus(component string, level int) {
	if c == nil {
		return
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(float64(level))
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	if c == nil {
		return
	}
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	if c == nil {
		return
	}
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(state int) {
	if c == nil {
		return
	}
	c.NATSCircuitBreaker.Set(float64(state))
}
