package sanitizer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/debugtel/event"
	"github.com/c360/debugtel/metric"
	"github.com/c360/debugtel/pkg/clock"
)

func TestLogSecurityViolation_RingBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxViolations = 3
	clk := clock.NewFake(time.Date(2024, 2, 2, 8, 0, 0, 0, time.UTC))
	s := newSanitizer(t, cfg, WithClock(clk))

	for i := range 5 {
		s.LogSecurityViolation(Violation{
			Type:        ViolationXSS,
			Severity:    event.SeverityHigh,
			Description: string(rune('a' + i)),
		})
	}

	got := s.SecurityViolations()
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Description, "oldest entries are evicted first")
	assert.Equal(t, "e", got[2].Description)
	assert.Equal(t, "2024-02-02T08:00:00.000Z", got[0].Timestamp)

	assert.Equal(t, 3, s.ClearSecurityViolations())
	assert.Empty(t, s.SecurityViolations())
}

func TestLogSecurityViolation_SanitizesAndDefaults(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	s := newSanitizer(t, DefaultConfig(), WithMetrics(registry))

	s.LogSecurityViolation(Violation{
		Type:        ViolationDataLeak,
		Severity:    "nonsense",
		Description: "leaked jane@example.com",
		Data:        map[string]any{"token": "abc"},
		URL:         "https://app/login?email=jane@example.com",
	})

	v := s.SecurityViolations()[0]
	assert.Equal(t, event.SeverityLow, v.Severity)
	assert.Equal(t, "leaked [EMAIL_REDACTED]", v.Description)
	assert.Equal(t, map[string]any{"token": "[REDACTED]"}, v.Data)
	assert.NotContains(t, v.URL, "jane@example.com")
}

func TestLogSecurityViolation_ReportsCriticalInProduction(t *testing.T) {
	reported := make(chan Violation, 4)
	reporter := ReporterFunc(func(_ context.Context, v Violation) error {
		reported <- v
		return nil
	})

	s := newSanitizer(t, DefaultConfig(), WithReporter(reporter), WithProduction(true))

	s.LogSecurityViolation(Violation{Type: ViolationCSP, Severity: event.SeverityHigh, Description: "inline script"})
	s.LogSecurityViolation(Violation{Type: ViolationXSS, Severity: event.SeverityCritical, Description: "payload"})

	select {
	case v := <-reported:
		assert.Equal(t, ViolationXSS, v.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("critical violation was not reported")
	}

	select {
	case v := <-reported:
		t.Fatalf("unexpected report for %s", v.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLogSecurityViolation_NoReportOutsideProduction(t *testing.T) {
	var calls atomic.Int32
	reporter := ReporterFunc(func(context.Context, Violation) error {
		calls.Add(1)
		return nil
	})

	s := newSanitizer(t, DefaultConfig(), WithReporter(reporter), WithProduction(false))
	s.LogSecurityViolation(Violation{Type: ViolationXSS, Severity: event.SeverityCritical})
	require.NoError(t, s.Close())

	assert.Equal(t, int32(0), calls.Load())
}

func TestLogSecurityViolation_ReportFailuresSwallowed(t *testing.T) {
	done := make(chan struct{}, 1)
	reporter := ReporterFunc(func(context.Context, Violation) error {
		defer func() { done <- struct{}{} }()
		return errors.New("collector down")
	})

	s := newSanitizer(t, DefaultConfig(), WithReporter(reporter), WithProduction(true))
	s.LogSecurityViolation(Violation{Type: ViolationSuspiciousActivity, Severity: event.SeverityCritical})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reporter was not called")
	}
	assert.Len(t, s.SecurityViolations(), 1)
}
