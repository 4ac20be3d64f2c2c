package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/event"
	"github.com/c360/debugtel/metric"
	"github.com/c360/debugtel/pkg/buffer"
	"github.com/c360/debugtel/pkg/clock"
	"github.com/c360/debugtel/pkg/worker"
	"github.com/c360/debugtel/transport"
)

// Rolling upload error list bounds
const (
	maxRecentErrors = 5
	maxErrorLength  = 200
)

// EventSanitizer redacts an event before it is stored.
type EventSanitizer interface {
	SanitizeEvent(ev event.DebugEvent) event.DebugEvent
}

// HistoryObserver is called after every stored event with the history size.
type HistoryObserver func(historySize int)

// queuedEvent carries the encoded size computed at ingestion so the drain
// step does not marshal again.
type queuedEvent struct {
	event event.DebugEvent
	size  int
}

// Pipeline captures debug events, keeps a bounded history for log files and
// uploads queued events in batches. All methods are safe for concurrent use.
type Pipeline struct {
	cfg        Config
	production bool

	transport transport.Transport
	sanitizer EventSanitizer
	onHistory HistoryObserver

	logger   *slog.Logger
	clock    clock.Clock
	registry *metric.MetricsRegistry
	metrics  *metric.Metrics

	queue   buffer.Buffer[queuedEvent]
	history buffer.Buffer[event.DebugEvent]
	limiter *rate.Limiter

	// inFlight admits one upload at a time
	inFlight atomic.Bool
	triggers *worker.Pool[trigger]

	sessionMu sync.RWMutex
	sessionID string
	userID    string

	counters counters

	statsMu        sync.Mutex
	lastUploadTime string
	recentErrors   []string
	lastFailed     bool

	lifecycleMu sync.Mutex
	started     bool
	stopped     atomic.Bool
	cancel      context.CancelFunc
	loopDone    chan struct{}
	startTime   time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithTransport sets where batches are sent. Without a transport every
// upload reports OutcomeDisabled and events stay queued.
func WithTransport(t transport.Transport) Option {
	return func(p *Pipeline) {
		p.transport = t
	}
}

// WithSanitizer redacts events before they are stored
func WithSanitizer(s EventSanitizer) Option {
	return func(p *Pipeline) {
		p.sanitizer = s
	}
}

// WithHistoryObserver sets a callback run after each stored event.
func WithHistoryObserver(fn HistoryObserver) Option {
	return func(p *Pipeline) {
		p.onHistory = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock replaces the clock used for timestamps and upload throttling.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithProduction marks the process as running in production. Uploads are
// then suppressed unless uploadInProduction is set.
func WithProduction(production bool) Option {
	return func(p *Pipeline) {
		p.production = production
	}
}

// WithMetrics registers queue, history and upload metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(p *Pipeline) {
		if registry != nil {
			p.registry = registry
			p.metrics = registry.CoreMetrics()
		}
	}
}

// New creates a pipeline. The trigger worker runs immediately; Start adds
// the periodic upload timer.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:       cfg,
		logger:    slog.Default(),
		clock:     clock.Real(),
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pipeline")
	p.startTime = p.clock.Now()

	queueOpts := []buffer.Option[queuedEvent]{
		buffer.WithOverflowPolicy[queuedEvent](buffer.DropOldest),
		buffer.WithDropCallback[queuedEvent](p.onEvicted),
	}
	historyOpts := []buffer.Option[event.DebugEvent]{
		buffer.WithOverflowPolicy[event.DebugEvent](buffer.DropOldest),
	}
	if p.registry != nil {
		queueOpts = append(queueOpts, buffer.WithMetrics[queuedEvent](p.registry, "upload_queue"))
		historyOpts = append(historyOpts, buffer.WithMetrics[event.DebugEvent](p.registry, "event_history"))
	}

	queue, err := buffer.NewCircularBuffer[queuedEvent](cfg.MaxQueueSize, queueOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline", "New", "create upload queue")
	}
	p.queue = queue

	history, err := buffer.NewCircularBuffer[event.DebugEvent](cfg.MaxHistorySize, historyOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline", "New", "create event history")
	}
	p.history = history

	limit := rate.Inf
	if cfg.MinUploadInterval > 0 {
		limit = rate.Every(cfg.MinUploadInterval)
	}
	p.limiter = rate.NewLimiter(limit, 1)

	// One worker with a one-slot queue: triggers that arrive while an upload
	// is pending collapse into it.
	poolOpts := []worker.Option[trigger]{
		worker.WithErrorHandler(func(t trigger, err error) {
			p.logger.Debug("Triggered upload failed", "trigger", t, "error", err)
		}),
	}
	if p.registry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[trigger](p.registry, "upload_triggers"))
	}
	p.triggers = worker.NewPool(1, 1, p.runTrigger, poolOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	if err := p.triggers.Start(ctx); err != nil {
		cancel()
		return nil, errors.Wrap(err, "pipeline", "New", "start trigger worker")
	}

	return p, nil
}

// Config returns the configuration the pipeline was built with
func (p *Pipeline) Config() Config {
	return p.cfg
}

// SetSession sets the session and user IDs applied to events that carry none.
func (p *Pipeline) SetSession(sessionID, userID string) {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()
	if sessionID != "" {
		p.sessionID = sessionID
	}
	p.userID = userID
}

// Session returns the current session and user IDs.
func (p *Pipeline) Session() (sessionID, userID string) {
	p.sessionMu.RLock()
	defer p.sessionMu.RUnlock()
	return p.sessionID, p.userID
}

// History returns a copy of the retained events, oldest first.
func (p *Pipeline) History() []event.DebugEvent {
	return p.history.Snapshot()
}

// ClearHistory empties the retained history and returns how many events it held.
func (p *Pipeline) ClearHistory() int {
	n := p.history.Clear()
	p.metrics.RecordHistorySize(0)
	return n
}

// RemoveHistory removes the given events from the retained history by ID and
// returns how many were removed. Events stored since they were read stay.
func (p *Pipeline) RemoveHistory(events []event.DebugEvent) int {
	if len(events) == 0 {
		return 0
	}
	pending := make(map[string]int, len(events))
	for _, ev := range events {
		pending[ev.ID]++
	}
	n := p.history.RemoveFunc(func(ev event.DebugEvent) bool {
		if pending[ev.ID] == 0 {
			return false
		}
		pending[ev.ID]--
		return true
	})
	p.metrics.RecordHistorySize(p.history.Size())
	return n
}

// QueueSize returns the number of events waiting for upload.
func (p *Pipeline) QueueSize() int {
	return p.queue.Size()
}

// RecordAutoDownload counts one automatic log file download.
func (p *Pipeline) RecordAutoDownload() {
	p.counters.autoDownloads.Add(1)
}

// uploadsActive reports whether captured events are queued for upload.
func (p *Pipeline) uploadsActive() bool {
	return !p.production || p.cfg.UploadInProduction
}

func (p *Pipeline) onEvicted(queuedEvent) {
	p.counters.failed.Add(1)
	p.counters.evicted.Add(1)
	p.metrics.RecordEvent("evicted")
}

func (p *Pipeline) recordError(err error) {
	msg := errors.Truncate(err, maxErrorLength)

	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.recentErrors = append(p.recentErrors, msg)
	if len(p.recentErrors) > maxRecentErrors {
		p.recentErrors = p.recentErrors[len(p.recentErrors)-maxRecentErrors:]
	}
	p.lastFailed = true
}
