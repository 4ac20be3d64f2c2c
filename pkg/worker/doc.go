// Package worker provides a generic bounded worker pool for best-effort
// background work.
//
// The pool runs a fixed number of goroutines that drain a buffered channel.
// Submit never blocks: when the channel is full the item is dropped and
// ErrQueueFull is returned, so callers on hot paths are never slowed by a
// slow consumer. Security violation reports use a one-worker pool so that a
// hung report endpoint cannot stall event ingestion.
//
//	pool := worker.NewPool[Violation](1, 16, report,
//	    worker.WithErrorHandler[Violation](func(v Violation, err error) {
//	        logger.Debug("violation report failed", "type", v.Type, "error", err)
//	    }),
//	)
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
// Stop closes the queue and waits for queued items to finish; cancelling the
// Start context abandons them instead. Stats are always tracked, and
// WithMetricsRegistry exports them as Prometheus metrics labelled by pool.
package worker
