package pipeline

import (
	"context"
	"time"

	"github.com/c360/debugtel/errors"
)

// LifecycleEvent is a host application state change that affects uploads.
type LifecycleEvent int

const (
	// LifecycleHidden means the host went to the background and may be
	// suspended; queued events are flushed.
	LifecycleHidden LifecycleEvent = iota
	// LifecycleTeardown means the host is exiting.
	LifecycleTeardown
)

func (e LifecycleEvent) String() string {
	switch e {
	case LifecycleHidden:
		return "hidden"
	case LifecycleTeardown:
		return "teardown"
	}
	return "unknown"
}

// Start runs the periodic upload timer until ctx is cancelled or Stop is called.
func (p *Pipeline) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.stopped.Load() {
		return errors.WrapInvalid(errors.ErrShuttingDown, "pipeline", "Start", "start after stop")
	}
	if p.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "pipeline", "Start", "start timer")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.loopDone = done
	p.started = true

	prevCancel := p.cancel
	p.cancel = func() {
		cancel()
		prevCancel()
	}

	go p.runTimer(loopCtx, done)

	p.logger.Info("Pipeline started",
		"interval", p.cfg.UploadInterval,
		"batch_size", p.cfg.BatchSize,
		"uploads_active", p.uploadsActive())
	return nil
}

func (p *Pipeline) runTimer(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.UploadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.queue.IsEmpty() {
				p.fire(triggerInterval)
			}
		}
	}
}

// HandleLifecycle reacts to a host state change. Hidden flushes one batch;
// Teardown stops the pipeline with a final flush.
func (p *Pipeline) HandleLifecycle(ctx context.Context, e LifecycleEvent) UploadOutcome {
	switch e {
	case LifecycleHidden:
		return p.UploadBatch(ctx)
	case LifecycleTeardown:
		outcome, _ := p.stop(ctx)
		return outcome
	}
	return OutcomeEmpty
}

// Stop ends capture, stops the timer and makes one best-effort upload of
// the queue front, bounded by ctx. Events still queued afterwards are lost
// with the process. The transport is closed. Calling Stop again is a no-op.
func (p *Pipeline) Stop(ctx context.Context) error {
	_, err := p.stop(ctx)
	return err
}

func (p *Pipeline) stop(ctx context.Context) (UploadOutcome, error) {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.stopped.CompareAndSwap(false, true) {
		return OutcomeDisabled, nil
	}

	wait := p.cfg.FlushTimeout
	if wait <= 0 {
		wait = 5 * time.Second
	}
	// Let a pending trigger finish before the timer and workers go away.
	if err := p.triggers.Stop(wait); err != nil {
		p.logger.Warn("Triggered upload still running at stop", "error", err)
	}
	p.cancel()
	if p.loopDone != nil {
		<-p.loopDone
	}

	if _, ok := ctx.Deadline(); !ok && p.cfg.FlushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.FlushTimeout)
		defer cancel()
	}

	outcome := OutcomeDisabled
	if p.cfg.Enabled && p.transport != nil {
		outcome = p.upload(ctx, true)
		for outcome == OutcomeBusy && ctx.Err() == nil {
			// A direct UploadBatch caller still holds the guard.
			time.Sleep(10 * time.Millisecond)
			outcome = p.upload(ctx, true)
		}
	}

	var err error
	if p.transport != nil {
		if cerr := p.transport.Close(); cerr != nil {
			err = errors.Wrap(cerr, "pipeline", "Stop", "close transport")
		}
	}

	stats := p.Stats()
	p.logger.Info("Pipeline stopped",
		"final_flush", outcome,
		"left_in_queue", stats.QueuedEvents,
		"uploaded", stats.UploadedEvents,
		"failed", stats.FailedEvents)
	return outcome, err
}
