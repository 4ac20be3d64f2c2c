// Package health provides health status tracking and aggregation for the
// telemetry pipeline and its collaborators.
//
// # Health States
//
//   - Healthy: component operating normally
//   - Degraded: component operating with reduced functionality, for example
//     the uploader is requeueing batches after transient transport failures
//   - Unhealthy: component not functioning, for example the NATS connection is down
//
// # Usage
//
//	overall := health.Aggregate("debugtel", []health.Status{
//	    pipe.Health(),
//	    health.FromError("nats", natsErr, reconnecting, nil),
//	})
//	if !overall.IsHealthy() {
//	    slog.Warn("debugtel degraded", "status", overall.Status, "message", overall.Message)
//	}
//
// FromError builds a status from a component's last error. Error text is
// scrubbed of URLs, file paths, IP addresses, ports and credential-shaped
// key/value pairs before it is stored, because statuses are served verbatim
// on the /health endpoint.
//
// # Aggregation
//
// Aggregate applies worst-of semantics: any unhealthy sub-status makes the
// aggregate unhealthy, otherwise any degraded sub-status makes it degraded.
// The aggregate message names the components that are not healthy.
package health
