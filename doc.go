// Package debugtel is a client-side debug telemetry pipeline. It captures
// debug events from an application, scrubs secrets and personal data from
// them, queues them for batched upload to a remote collector, and keeps a
// bounded history that can be written out as categorized log files.
//
// # Architecture
//
//	          events (HTTP POST /events, NATS ingest subject, AddEvent)
//	                               ↓
//	┌─────────────────────────────────────┐
//	│            Sanitizer                │  Redaction rules, violation log,
//	│  (redact, classify, rate limit)     │  error report rate limiting
//	└─────────────────────────────────────┘
//	                               ↓
//	┌─────────────────────────────────────┐
//	│            Pipeline                 │  History ring, upload queue,
//	│  (enrich, fit, history, queue)      │  periodic and triggered uploads
//	└─────────────────────────────────────┘
//	           ↓ batches                       ↓ history
//	┌──────────────────────┐    ┌──────────────────────────────┐
//	│      Transport       │    │     Log File Generator       │
//	│ http, kafka or nats  │    │ complete, per type, per      │
//	│ request-reply        │    │ source, filtered, JSON export│
//	└──────────────────────┘    └──────────────────────────────┘
//
// # Packages
//
//   - event: the DebugEvent record, its types, severities and size fitting
//   - sanitizer: redaction of strings, data trees and events; security
//     violation history; error report rate limiting
//   - pipeline: event ingestion, history, the upload queue and the batch
//     uploader with retry, backoff and minimum upload spacing
//   - transport: the batch delivery interface and its HTTP, Kafka and NATS
//     implementations, chosen by transportregistry
//   - logfile: rendering and delivery of log files to a directory or a NATS
//     object store bucket
//   - config: layered JSON, JSONC and YAML configuration with DEBUGTEL_
//     environment overrides
//   - metric, health, natsclient, errors: Prometheus metrics, health status,
//     NATS connection management and error classification
//
// # Usage
//
// The debugtel command assembles every component from configuration:
//
//	debugtel --config=configs/debugtel.yaml
//
// Embedding applications use the packages directly:
//
//	san, _ := sanitizer.New(sanitizer.DefaultConfig())
//	tr, _ := transportregistry.New(transportCfg, transport.Dependencies{})
//	p, _ := pipeline.New(pipeline.DefaultConfig(),
//		pipeline.WithTransport(tr),
//		pipeline.WithSanitizer(san))
//	_ = p.Start(ctx)
//	defer p.Stop(ctx)
//
//	p.AddEvent(event.DebugEvent{
//		Type:     event.TypeNetwork,
//		Severity: event.SeverityHigh,
//		Source:   "checkout",
//		Message:  "payment request failed",
//	})
package debugtel
