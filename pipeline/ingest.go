package pipeline

import (
	"github.com/c360/debugtel/event"
)

// AddEvent captures one event. It never blocks on the network and never
// fails; what happened to the event is visible only through Stats.
func (p *Pipeline) AddEvent(ev event.DebugEvent) {
	if !p.cfg.Enabled || p.stopped.Load() {
		p.metrics.RecordEvent("disabled")
		return
	}

	severity := ev.Severity
	if !severity.Valid() {
		severity = event.ParseSeverity(string(severity))
	}
	if severity == event.SeverityMedium && !p.cfg.UploadOnWarning {
		p.counters.filtered.Add(1)
		p.metrics.RecordEvent("filtered")
		return
	}

	ev = p.enrich(ev)
	if p.sanitizer != nil {
		ev = p.sanitizer.SanitizeEvent(ev)
	}

	ev, truncated := p.fit(ev)
	if truncated {
		p.counters.truncated.Add(1)
		p.metrics.RecordEvent("truncated")
	}

	_ = p.history.Write(ev)
	historySize := p.history.Size()
	p.metrics.RecordHistorySize(historySize)

	if p.uploadsActive() {
		p.enqueue(ev)
	}

	if p.onHistory != nil {
		p.onHistory(historySize)
	}
}

// enrich fills identity, time and session defaults.
func (p *Pipeline) enrich(ev event.DebugEvent) event.DebugEvent {
	ev = ev.Normalize(p.clock.Now())
	if ev.SessionID == "" || ev.UserID == "" {
		sessionID, userID := p.Session()
		if ev.SessionID == "" {
			ev.SessionID = sessionID
		}
		if ev.UserID == "" {
			ev.UserID = userID
		}
	}
	return ev
}

// fit applies the message length cap and the per-event size cap.
func (p *Pipeline) fit(ev event.DebugEvent) (event.DebugEvent, bool) {
	msg, cut := event.TruncateMessage(ev.Message)
	ev.Message = msg
	ev, shrunk := event.FitSize(ev, p.cfg.MaxEventDataSize)
	return ev, cut || shrunk
}

func (p *Pipeline) enqueue(ev event.DebugEvent) {
	if err := p.queue.Write(queuedEvent{event: ev, size: event.EstimateSize(ev)}); err != nil {
		p.counters.failed.Add(1)
		p.metrics.RecordEvent("dropped")
		return
	}
	p.counters.total.Add(1)
	p.metrics.RecordEvent("queued")

	size := p.queue.Size()
	p.metrics.RecordQueueDepth(size)

	switch {
	case ev.Severity.AtLeast(event.SeverityHigh) && p.cfg.UploadOnError:
		p.fire(triggerSeverity)
	case size >= p.cfg.BatchSize:
		p.fire(triggerThreshold)
	}
}
