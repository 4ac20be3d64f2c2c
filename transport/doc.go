// Package transport defines how upload batches leave the process.
//
// A Transport delivers one Batch per Send call and reports success only when
// the collector acknowledged it. The wire body is always a Payload:
//
//	{"events": [DebugEvent, ...]}
//
// and reply bodies, where the transport has them, are a Response:
//
//	{"success": true, "message": "optional"}
//
// Each batch carries a Key, the hex BLAKE3 digest of its ordered event IDs.
// HTTP and NATS send it as the Idempotency-Key header and Kafka uses it as
// the message key, so a collector can drop a batch it already stored when a
// late reply caused a retry.
//
// # Error classes
//
// Encoding failures are Invalid and never retried. Network failures, non-2xx
// statuses, success:false replies and malformed replies are Transient.
//
// # Implementations
//
// Implementations live in subpackages and register a Factory with a Registry:
//
//	transport/httppost  JSON POST, optional gzip, client TLS
//	transport/natsreq   NATS request/reply
//	transport/kafka     keyed Kafka messages
//
// The transportregistry package registers all of them.
package transport
