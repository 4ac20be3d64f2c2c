// Package pipeline captures debug events and uploads them in batches.
//
// A Pipeline is an explicit instance built once per process and handed to
// every collaborator that reports events:
//
//	p, err := pipeline.New(cfg,
//	    pipeline.WithTransport(tr),
//	    pipeline.WithSanitizer(s),
//	    pipeline.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	defer p.Stop(context.Background())
//
//	p.AddEvent(event.DebugEvent{Type: event.TypeNetwork, Severity: event.SeverityHigh, Source: "api", Message: "timeout"})
//
// # Ingestion
//
// AddEvent never fails and never waits on the network. Events are enriched
// with an ID, timestamp and session, optionally sanitized, size-capped, then
// stored twice: in the retained history used for log files and, unless
// uploads are suppressed in production, in the bounded upload queue. A full
// queue evicts its oldest event and counts it as failed.
//
// # Uploads
//
// UploadBatch drains up to BatchSize events whose summed encoded size stays
// within MaxBatchSize, sends them through the Transport with linear backoff
// retries and, on failure, puts them back at the front of the queue. Only
// one upload runs at a time and starts are spaced by MinUploadInterval.
// Uploads are triggered by the periodic timer, by high or critical events,
// by the queue reaching BatchSize, and by HandleLifecycle.
//
// Delivery is at least once. Every batch carries an idempotency key derived
// from its event IDs so receivers can discard repeats.
//
// Outcomes are reported through Stats, Health and the Prometheus metrics;
// nothing is surfaced to the caller as an error.
package pipeline
