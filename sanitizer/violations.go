package sanitizer

import (
	"context"
	"time"

	"github.com/c360/debugtel/event"
	"github.com/c360/debugtel/pkg/timestamp"
)

// ViolationType classifies a security violation.
type ViolationType string

// Violation types.
const (
	ViolationCSP                ViolationType = "csp"
	ViolationXSS                ViolationType = "xss"
	ViolationDataLeak           ViolationType = "data_leak"
	ViolationSuspiciousActivity ViolationType = "suspicious_activity"
)

// Violation is a security-relevant condition, kept separate from debug events.
type Violation struct {
	Type        ViolationType  `json:"type"`
	Severity    event.Severity `json:"severity"`
	Description string         `json:"description"`
	Data        any            `json:"data,omitempty"`
	Timestamp   string         `json:"timestamp"`
	Source      string         `json:"source,omitempty"`
	URL         string         `json:"url,omitempty"`
	UserAgent   string         `json:"userAgent,omitempty"`
}

// Reporter delivers critical violations out of band.
type Reporter interface {
	ReportViolation(ctx context.Context, v Violation) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, v Violation) error

// ReportViolation calls f.
func (f ReporterFunc) ReportViolation(ctx context.Context, v Violation) error {
	return f(ctx, v)
}

const reportTimeout = 10 * time.Second

// LogSecurityViolation records v in the bounded violation log. Critical
// violations in production are also handed to the Reporter on a background
// worker; report failures and a full report queue are swallowed.
func (s *Sanitizer) LogSecurityViolation(v Violation) {
	if v.Timestamp == "" {
		v.Timestamp = timestamp.Format(s.clock.Now())
	}
	if !v.Severity.Valid() {
		v.Severity = event.ParseSeverity(string(v.Severity))
	}
	if s.cfg.Enabled {
		rules := s.activeRules()
		v.Description = s.sanitizeString(v.Description, rules)
		v.URL = s.sanitizeString(v.URL, rules)
		if v.Data != nil {
			v.Data = s.sanitizeValue(v.Data, rules, 0)
		}
	}

	_ = s.violations.Write(v)
	s.metrics.RecordViolation(string(v.Type), string(v.Severity))
	s.logger.Warn("Security violation",
		"type", v.Type,
		"severity", v.Severity,
		"description", v.Description,
		"source", v.Source)

	if v.Severity != event.SeverityCritical || !s.production || s.reports == nil {
		return
	}
	if err := s.reports.Submit(v); err != nil {
		s.logger.Debug("Violation report dropped", "type", v.Type, "error", err)
	}
}

// SecurityViolations returns the retained violations, oldest first.
func (s *Sanitizer) SecurityViolations() []Violation {
	return s.violations.Snapshot()
}

// ClearSecurityViolations empties the violation log and returns how many were removed.
func (s *Sanitizer) ClearSecurityViolations() int {
	return s.violations.Clear()
}

func (s *Sanitizer) report(ctx context.Context, v Violation) error {
	ctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()
	return s.reporter.ReportViolation(ctx, v)
}
