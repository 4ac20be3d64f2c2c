package pipeline

import (
	"fmt"
	"sync/atomic"

	"github.com/c360/debugtel/health"
)

type counters struct {
	total         atomic.Int64
	uploaded      atomic.Int64
	failed        atomic.Int64
	filtered      atomic.Int64
	truncated     atomic.Int64
	evicted       atomic.Int64
	retries       atomic.Int64
	batchesSent   atomic.Int64
	batchesFailed atomic.Int64
	throttled     atomic.Int64
	autoDownloads atomic.Int64
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	TotalEvents    int64    `json:"totalEvents"`
	UploadedEvents int64    `json:"uploadedEvents"`
	FailedEvents   int64    `json:"failedEvents"`
	QueuedEvents   int      `json:"queuedEvents"`
	LastUploadTime string   `json:"lastUploadTime,omitempty"`
	Errors         []string `json:"errors"`

	FilteredEvents   int64 `json:"filteredEvents"`
	TruncatedEvents  int64 `json:"truncatedEvents"`
	EvictedEvents    int64 `json:"evictedEvents"`
	Retries          int64 `json:"retries"`
	BatchesSent      int64 `json:"batchesSent"`
	BatchesFailed    int64 `json:"batchesFailed"`
	ThrottledUploads int64 `json:"throttledUploads"`
	HistorySize      int   `json:"historySize"`
	AutoDownloads    int64 `json:"autoDownloads"`
}

// Stats returns the current counters. The error list is a copy.
func (p *Pipeline) Stats() Stats {
	p.statsMu.Lock()
	errs := make([]string, len(p.recentErrors))
	copy(errs, p.recentErrors)
	lastUpload := p.lastUploadTime
	p.statsMu.Unlock()

	return Stats{
		TotalEvents:      p.counters.total.Load(),
		UploadedEvents:   p.counters.uploaded.Load(),
		FailedEvents:     p.counters.failed.Load(),
		QueuedEvents:     p.queue.Size(),
		LastUploadTime:   lastUpload,
		Errors:           errs,
		FilteredEvents:   p.counters.filtered.Load(),
		TruncatedEvents:  p.counters.truncated.Load(),
		EvictedEvents:    p.counters.evicted.Load(),
		Retries:          p.counters.retries.Load(),
		BatchesSent:      p.counters.batchesSent.Load(),
		BatchesFailed:    p.counters.batchesFailed.Load(),
		ThrottledUploads: p.counters.throttled.Load(),
		HistorySize:      p.history.Size(),
		AutoDownloads:    p.counters.autoDownloads.Load(),
	}
}

// Health reports degraded when the last upload failed or the queue is
// nearly full.
func (p *Pipeline) Health() health.Status {
	stats := p.Stats()
	metrics := &health.Metrics{
		Uptime:          p.clock.Now().Sub(p.startTime),
		ErrorCount:      int(stats.BatchesFailed),
		EventsProcessed: stats.TotalEvents,
		QueueDepth:      stats.QueuedEvents,
	}

	p.statsMu.Lock()
	lastFailed := p.lastFailed
	var lastErr string
	if n := len(p.recentErrors); n > 0 {
		lastErr = p.recentErrors[n-1]
	}
	p.statsMu.Unlock()

	var status health.Status
	switch {
	case !p.cfg.Enabled:
		status = health.NewHealthy("pipeline", "Capture disabled")
	case p.stopped.Load():
		status = health.NewUnhealthy("pipeline", "Pipeline stopped")
	case lastFailed:
		status = health.NewDegraded("pipeline", "Last upload failed: "+lastErr)
	case stats.QueuedEvents*10 >= p.cfg.MaxQueueSize*9:
		status = health.NewDegraded("pipeline",
			fmt.Sprintf("Upload queue at %d of %d events", stats.QueuedEvents, p.cfg.MaxQueueSize))
	default:
		status = health.NewHealthy("pipeline", "Capturing events")
	}
	p.metrics.RecordHealthStatus("pipeline", status.Level())
	return status.WithMetrics(metrics)
}
