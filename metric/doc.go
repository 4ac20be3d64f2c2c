// Package metric provides the Prometheus registry and HTTP server for debugtel.
//
// # Registry
//
// MetricsRegistry wraps a dedicated prometheus.Registry (never the global
// default) and pre-registers the core pipeline metrics plus Go runtime and
// process collectors. Components register their own collectors through the
// typed Register* methods; each registration is keyed "service.metric" and a
// duplicate key is rejected as an invalid error.
//
//	registry := metric.NewMetricsRegistry()
//	queue, err := buffer.NewCircularBuffer[event.DebugEvent](1000,
//	    buffer.WithMetrics[event.DebugEvent](registry, "upload_queue"))
//
// # Core metrics
//
// All core metrics use the "debugtel" namespace:
//
//   - debugtel_events_total{outcome}: ingestion outcomes
//   - debugtel_queue_depth, debugtel_history_size
//   - debugtel_uploads_total{result}, debugtel_uploads_events_total,
//     debugtel_uploads_retries_total, debugtel_uploads_duration_seconds
//   - debugtel_sanitizer_violations_total{type,severity}
//   - debugtel_logfile_categories_total{result}
//   - debugtel_health_status{component}
//   - debugtel_nats_connected, debugtel_nats_reconnects_total,
//     debugtel_nats_circuit_breaker
//
// Record* methods accept a nil *Metrics so components work without a registry.
//
// # Server
//
// Server exposes /metrics (promhttp with OpenMetrics), /health (JSON
// health.Status, 503 when unhealthy) and any handler added with Handle.
// Start blocks until Shutdown is called. TLS is enabled through the
// security.Config passed at construction.
package metric
