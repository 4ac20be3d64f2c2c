package pipeline

import (
	"context"
	stderrors "errors"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/event"
	"github.com/c360/debugtel/pkg/retry"
	"github.com/c360/debugtel/pkg/timestamp"
	"github.com/c360/debugtel/pkg/worker"
	"github.com/c360/debugtel/transport"
)

// UploadOutcome tags what one UploadBatch call did.
type UploadOutcome string

// Upload outcomes
const (
	OutcomeEmpty     UploadOutcome = "empty"
	OutcomeBusy      UploadOutcome = "busy"
	OutcomeThrottled UploadOutcome = "throttled"
	OutcomeUploaded  UploadOutcome = "uploaded"
	OutcomeRequeued  UploadOutcome = "requeued"
	OutcomeDisabled  UploadOutcome = "disabled"
)

func (o UploadOutcome) String() string { return string(o) }

// trigger names the reason for a background upload
type trigger string

const (
	triggerSeverity  trigger = "severity"
	triggerThreshold trigger = "threshold"
	triggerInterval  trigger = "interval"
)

// fire schedules a background upload. A trigger that finds one already
// pending is dropped.
func (p *Pipeline) fire(t trigger) {
	if err := p.triggers.Submit(t); err != nil && !stderrors.Is(err, worker.ErrQueueFull) {
		p.logger.Debug("Upload trigger not scheduled", "trigger", t, "error", err)
	}
}

func (p *Pipeline) runTrigger(ctx context.Context, t trigger) error {
	outcome := p.UploadBatch(ctx)
	p.logger.Debug("Triggered upload finished", "trigger", t, "outcome", outcome)
	return nil
}

// UploadBatch sends one batch from the front of the queue. At most one
// upload runs at a time; a concurrent caller gets OutcomeBusy. Failed
// batches go back to the front of the queue in their original order.
func (p *Pipeline) UploadBatch(ctx context.Context) UploadOutcome {
	return p.upload(ctx, false)
}

// upload runs one batch. force skips the minimum interval check and is used
// for the final flush.
func (p *Pipeline) upload(ctx context.Context, force bool) UploadOutcome {
	if !p.cfg.Enabled || p.transport == nil {
		return OutcomeDisabled
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		p.metrics.RecordUpload(string(OutcomeBusy))
		return OutcomeBusy
	}
	defer p.inFlight.Store(false)

	if p.queue.IsEmpty() {
		return OutcomeEmpty
	}
	if !force && !p.limiter.AllowN(p.clock.Now(), 1) {
		p.counters.throttled.Add(1)
		p.metrics.RecordUpload(string(OutcomeThrottled))
		return OutcomeThrottled
	}

	pending := p.drain()
	if len(pending) == 0 {
		return OutcomeEmpty
	}
	p.metrics.RecordQueueDepth(p.queue.Size())

	events := make([]event.DebugEvent, len(pending))
	for i, q := range pending {
		events[i] = q.event
	}
	batch := transport.NewBatch(events)

	start := p.clock.Now()
	err := retry.Do(ctx, p.retryConfig(), func() error {
		err := p.transport.Send(ctx, batch)
		if err != nil && errors.IsInvalid(err) {
			return retry.NonRetryable(err)
		}
		return err
	})
	p.metrics.RecordUploadDuration(p.clock.Now().Sub(start))

	if err != nil {
		evicted := p.queue.Prepend(pending)
		p.counters.batchesFailed.Add(1)
		p.recordError(err)
		p.metrics.RecordUpload(string(OutcomeRequeued))
		p.metrics.RecordQueueDepth(p.queue.Size())
		p.logger.Warn("Upload failed, batch requeued",
			"events", len(pending), "key", batch.Key, "evicted", evicted, "error", err)
		return OutcomeRequeued
	}

	p.counters.uploaded.Add(int64(len(pending)))
	p.counters.batchesSent.Add(1)
	p.statsMu.Lock()
	p.lastUploadTime = timestamp.Format(p.clock.Now())
	p.lastFailed = false
	p.statsMu.Unlock()

	p.metrics.RecordUpload(string(OutcomeUploaded))
	p.metrics.RecordUploadedEvents(len(pending))
	p.logger.Debug("Batch uploaded", "events", len(pending), "key", batch.Key)
	return OutcomeUploaded
}

// drain removes the next batch from the queue: up to batchSize events whose
// summed size stays within maxBatchSize. The first event is always taken.
func (p *Pipeline) drain() []queuedEvent {
	total := 0
	return p.queue.ReadWhile(func(q queuedEvent, taken int) bool {
		if taken >= p.cfg.BatchSize {
			return false
		}
		if taken > 0 && total+q.size > p.cfg.MaxBatchSize {
			return false
		}
		total += q.size
		return true
	})
}

func (p *Pipeline) retryConfig() retry.Config {
	cfg := retry.LinearConfig(p.cfg.RetryAttempts, p.cfg.RetryDelay)
	cfg.OnRetry = func(attempt int, err error) {
		p.counters.retries.Add(1)
		p.metrics.RecordRetry()
		p.logger.Debug("Retrying upload", "attempt", attempt, "error", err)
	}
	return cfg
}
