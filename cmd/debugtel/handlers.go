package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/event"
	"github.com/c360/debugtel/logfile"
	"github.com/c360/debugtel/metric"
	"github.com/c360/debugtel/pipeline"
	"github.com/c360/debugtel/sanitizer"
)

// maxIngestBody bounds one POST /events body
const maxIngestBody = 1 << 20

// routes registers the local endpoints next to /metrics and /health
func (a *app) routes(s *metric.Server) {
	s.Handle("/events", http.HandlerFunc(a.handleEvents))
	s.Handle("/stats", http.HandlerFunc(a.handleStats))
	s.Handle("/violations", http.HandlerFunc(a.handleViolations))
	s.Handle("/flush", http.HandlerFunc(a.handleFlush))
	s.Handle("/logs", http.HandlerFunc(a.handleLogs))
	s.Handle("/logs/filtered", http.HandlerFunc(a.handleFilteredLogs))
	s.Handle("/export", http.HandlerFunc(a.handleExport))
}

// getOrGenerateRequestID extracts the request ID header or creates one
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// ingestResult is the reply to an event submission
type ingestResult struct {
	Accepted int `json:"accepted"`
	Limited  int `json:"limited,omitempty"`
}

// decodeEvents accepts a single event, a JSON array of events, or the upload
// wire shape {"events": [...]}.
func decodeEvents(body []byte) ([]event.DebugEvent, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.WrapInvalid(errors.ErrEmptyBatch, "ingest", "decodeEvents", "read body")
	}

	if body[0] == '[' {
		var events []event.DebugEvent
		if err := json.Unmarshal(body, &events); err != nil {
			return nil, errors.WrapInvalid(err, "ingest", "decodeEvents", "decode event array")
		}
		return events, nil
	}

	var envelope struct {
		Events []event.DebugEvent `json:"events"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.WrapInvalid(err, "ingest", "decodeEvents", "decode body")
	}
	if envelope.Events != nil {
		return envelope.Events, nil
	}

	var ev event.DebugEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, errors.WrapInvalid(err, "ingest", "decodeEvents", "decode event")
	}
	return []event.DebugEvent{ev}, nil
}

// ingest hands events to the pipeline. Error events repeated beyond the
// sanitizer's rate limit are dropped.
func (a *app) ingest(events []event.DebugEvent) ingestResult {
	var res ingestResult
	for _, ev := range events {
		if ev.Type == event.TypeError && a.sanitizer.ShouldRateLimitErrorReporting(ev.Source+"|"+ev.Message) {
			res.Limited++
			continue
		}
		a.pipeline.AddEvent(ev)
		res.Accepted++
	}
	return res
}

// checkOrigin reports a violation and returns false for requests from a
// blocked user agent or, when allowed domains are configured, a foreign
// origin.
func (a *app) checkOrigin(r *http.Request) bool {
	ua := r.UserAgent()
	if a.sanitizer.IsBlockedUserAgent(ua) {
		a.sanitizer.LogSecurityViolation(sanitizer.Violation{
			Type:        sanitizer.ViolationSuspiciousActivity,
			Severity:    event.SeverityMedium,
			Description: "event submission from blocked user agent",
			Source:      "ingest",
			URL:         r.URL.Path,
			UserAgent:   ua,
		})
		return false
	}

	origin := r.Header.Get("Origin")
	if origin == "" || len(a.cfg.Sanitizer.AllowedDomains) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && a.sanitizer.IsAllowedDomain(u.Host) {
		return true
	}
	a.sanitizer.LogSecurityViolation(sanitizer.Violation{
		Type:        sanitizer.ViolationCSP,
		Severity:    event.SeverityHigh,
		Description: "event submission from origin outside allowed domains",
		Source:      "ingest",
		URL:         origin,
		UserAgent:   ua,
	})
	return false
}

func (a *app) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Request-ID", getOrGenerateRequestID(r))

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}
	defer r.Body.Close()

	if !a.checkOrigin(r) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxIngestBody {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds maximum size of %d bytes", maxIngestBody))
		return
	}

	events, err := decodeEvents(body)
	if err != nil {
		a.logger.Debug("Rejected event submission", "error", err)
		writeError(w, mapErrorToHTTPStatus(err), "invalid request")
		return
	}

	writeJSON(w, http.StatusAccepted, a.ingest(events))
}

// handleNATSEvents ingests events published on the ingest subject and
// answers requests with the ingest result.
func (a *app) handleNATSEvents(_ context.Context, msg *nats.Msg) {
	events, err := decodeEvents(msg.Data)
	if err != nil {
		a.logger.Debug("Dropped malformed NATS event message", "subject", msg.Subject, "error", err)
		if msg.Reply != "" {
			_ = msg.Respond([]byte(`{"accepted":0}`))
		}
		return
	}
	res := a.ingest(events)
	if msg.Reply != "" {
		data, _ := json.Marshal(res)
		_ = msg.Respond(data)
	}
}

type statsResponse struct {
	Pipeline   pipeline.Stats `json:"pipeline"`
	Violations int            `json:"violations"`
}

func (a *app) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Pipeline:   a.pipeline.Stats(),
		Violations: len(a.sanitizer.SecurityViolations()),
	})
}

func (a *app) handleViolations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		violations := a.sanitizer.SecurityViolations()
		if violations == nil {
			violations = []sanitizer.Violation{}
		}
		writeJSON(w, http.StatusOK, violations)
	case http.MethodDelete:
		writeJSON(w, http.StatusOK, map[string]int{"cleared": a.sanitizer.ClearSecurityViolations()})
	default:
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
	}
}

func (a *app) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}
	outcome := a.pipeline.UploadBatch(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"outcome": outcome, "queued": a.pipeline.QueueSize()})
}

func (a *app) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}
	written, err := a.logs.DownloadAll(r.Context())
	if err != nil {
		a.logger.Warn("Log file download incomplete", "written", written, "error", err)
		writeError(w, mapErrorToHTTPStatus(err), sanitizeError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"written": written})
}

// filterRequest is the body of POST /logs/filtered
type filterRequest struct {
	Name       string           `json:"name"`
	Severities []event.Severity `json:"severities"`
	Types      []event.Type     `json:"types"`
	Sources    []string         `json:"sources"`
	From       time.Time        `json:"from"`
	To         time.Time        `json:"to"`
}

func (a *app) handleFilteredLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}
	defer r.Body.Close()

	var req filterRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxIngestBody)).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	category := a.logs.CreateFilteredLogs(logfile.Filter{
		Name:       req.Name,
		Severities: req.Severities,
		Types:      req.Types,
		Sources:    req.Sources,
		From:       req.From,
		To:         req.To,
	})
	if err := a.logs.DownloadCategory(r.Context(), category); err != nil {
		writeError(w, mapErrorToHTTPStatus(err), sanitizeError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file": category.Filename, "events": len(category.Events)})
}

func (a *app) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}
	name, err := a.logs.DownloadExport(r.Context())
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), sanitizeError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": name})
}

// mapErrorToHTTPStatus maps classified errors to HTTP status codes
func mapErrorToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sanitizeError returns a safe error message for external clients
func sanitizeError(err error) string {
	switch {
	case errors.IsInvalid(err):
		return "invalid request"
	case errors.IsTransient(err):
		return "service temporarily unavailable"
	default:
		return "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"error":  message,
		"status": statusCode,
	})
}
