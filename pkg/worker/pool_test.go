package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/c360/debugtel/metric"
)

type report struct {
	id   int
	fail bool
	wait time.Duration
}

func startPool(t *testing.T, p *Pool[report]) {
	t.Helper()
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}
	t.Cleanup(func() { _ = p.Stop(5 * time.Second) })
}

func TestNewPool_Defaults(t *testing.T) {
	noop := func(context.Context, report) error { return nil }

	p := NewPool(0, 0, noop)
	if p.workers != 1 {
		t.Errorf("Expected default 1 worker, got %d", p.workers)
	}
	if p.queueSize != 100 {
		t.Errorf("Expected default queue size 100, got %d", p.queueSize)
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Expected panic for nil processor")
		}
		if !errors.Is(r.(error), ErrNilProcessor) {
			t.Errorf("Expected ErrNilProcessor, got %v", r)
		}
	}()
	NewPool[report](1, 1, nil)
}

func TestPool_Lifecycle(t *testing.T) {
	var processed atomic.Int64
	p := NewPool(2, 10, func(context.Context, report) error {
		processed.Add(1)
		return nil
	})

	if err := p.Submit(report{id: 1}); !errors.Is(err, ErrPoolNotStarted) {
		t.Errorf("Expected ErrPoolNotStarted, got %v", err)
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}
	if err := p.Start(context.Background()); !errors.Is(err, ErrPoolAlreadyStarted) {
		t.Errorf("Expected ErrPoolAlreadyStarted, got %v", err)
	}

	for i := range 5 {
		if err := p.Submit(report{id: i}); err != nil {
			t.Fatalf("Failed to submit %d: %v", i, err)
		}
	}

	// Stop drains everything already queued
	if err := p.Stop(5 * time.Second); err != nil {
		t.Fatalf("Failed to stop pool: %v", err)
	}
	if got := processed.Load(); got != 5 {
		t.Errorf("Expected 5 processed items, got %d", got)
	}

	if err := p.Submit(report{id: 99}); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Expected ErrPoolStopped, got %v", err)
	}
	if err := p.Stop(time.Second); err != nil {
		t.Errorf("Second Stop should be a no-op, got %v", err)
	}
}

func TestPool_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	p := NewPool(1, 2, func(ctx context.Context, _ report) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	startPool(t, p)
	defer close(release)

	var full int
	for i := range 10 {
		if err := p.Submit(report{id: i}); errors.Is(err, ErrQueueFull) {
			full++
		}
	}

	if full == 0 {
		t.Fatal("Expected some submissions to be dropped")
	}
	if got := p.Stats().Dropped; got != int64(full) {
		t.Errorf("Expected %d dropped in stats, got %d", full, got)
	}
}

func TestPool_ErrorHandler(t *testing.T) {
	var (
		mu     sync.Mutex
		failed []int
	)
	done := make(chan struct{}, 10)

	p := NewPool(1, 10,
		func(_ context.Context, r report) error {
			defer func() { done <- struct{}{} }()
			if r.fail {
				return errors.New("collector unavailable")
			}
			return nil
		},
		WithErrorHandler[report](func(r report, err error) {
			mu.Lock()
			failed = append(failed, r.id)
			mu.Unlock()
		}),
	)
	startPool(t, p)

	for i := range 4 {
		_ = p.Submit(report{id: i, fail: i%2 == 1})
	}
	for range 4 {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for processing")
		}
	}

	// Failed counter is updated before the handler returns
	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 2 || failed[0] != 1 || failed[1] != 3 {
		t.Errorf("Expected failures [1 3], got %v", failed)
	}
	if got := p.Stats().Failed; got != 2 {
		t.Errorf("Expected 2 failed in stats, got %d", got)
	}
}

func TestPool_StopTimeout(t *testing.T) {
	started := make(chan struct{})
	p := NewPool(1, 1, func(ctx context.Context, _ report) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}

	_ = p.Submit(report{id: 1})
	<-started

	if err := p.Stop(50 * time.Millisecond); !errors.Is(err, ErrStopTimeout) {
		t.Errorf("Expected ErrStopTimeout, got %v", err)
	}
}

func TestPool_ContextCancelAbandonsQueue(t *testing.T) {
	var processed atomic.Int64
	p := NewPool(1, 10, func(ctx context.Context, r report) error {
		select {
		case <-time.After(r.wait):
			processed.Add(1)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Failed to start pool: %v", err)
	}
	for i := range 5 {
		_ = p.Submit(report{id: i, wait: time.Second})
	}
	cancel()

	if err := p.Stop(2 * time.Second); err != nil {
		t.Fatalf("Failed to stop pool: %v", err)
	}
	if got := processed.Load(); got != 0 {
		t.Errorf("Expected no completed work after cancel, got %d", got)
	}
}

func TestPool_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	done := make(chan struct{}, 3)

	p := NewPool(1, 5,
		func(_ context.Context, r report) error {
			defer func() { done <- struct{}{} }()
			if r.fail {
				return errors.New("boom")
			}
			return nil
		},
		WithMetricsRegistry[report](registry, "violations"),
	)
	startPool(t, p)

	_ = p.Submit(report{id: 1})
	_ = p.Submit(report{id: 2, fail: true})
	_ = p.Submit(report{id: 3})
	for range 3 {
		<-done
	}
	time.Sleep(10 * time.Millisecond)

	if got := testutil.ToFloat64(p.metrics.submitted); got != 3 {
		t.Errorf("Expected 3 submitted, got %v", got)
	}
	if got := testutil.ToFloat64(p.metrics.failed); got != 1 {
		t.Errorf("Expected 1 failed, got %v", got)
	}
	if got := testutil.ToFloat64(p.metrics.processed); got != 3 {
		t.Errorf("Expected 3 processed, got %v", got)
	}
}
