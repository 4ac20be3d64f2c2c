package sanitizer

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/event"
	"github.com/c360/debugtel/metric"
	"github.com/c360/debugtel/pkg/buffer"
	"github.com/c360/debugtel/pkg/cache"
	"github.com/c360/debugtel/pkg/clock"
	"github.com/c360/debugtel/pkg/worker"
)

const (
	maxDepth       = 32
	maxFixedPasses = 4
	depthMarker    = "[MAX_DEPTH]"
)

// Sanitizer applies an ordered rule table to strings and walks structured
// values, redacting sensitive keys wholesale. It is safe for concurrent use.
type Sanitizer struct {
	cfg    Config
	logger *slog.Logger
	clock  clock.Clock

	rulesMu sync.RWMutex
	rules   []Rule

	limitMu sync.Mutex
	windows *cache.TTLCache[[]time.Time]

	violations buffer.Buffer[Violation]
	reporter   Reporter
	reports    *worker.Pool[Violation]
	production bool
	metrics    *metric.Metrics
	registry   *metric.MetricsRegistry

	cancel context.CancelFunc
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithLogger sets the logger. Nil uses slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sanitizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used for rate-limit windows and violation timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Sanitizer) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithReporter sets where critical violations are reported in production.
func WithReporter(r Reporter) Option {
	return func(s *Sanitizer) { s.reporter = r }
}

// WithProduction marks the host environment as production, which enables
// out-of-band reporting of critical violations.
func WithProduction(production bool) Option {
	return func(s *Sanitizer) { s.production = production }
}

// WithMetrics records violations and exports rate-limit cache statistics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Sanitizer) {
		s.registry = registry
		s.metrics = registry.CoreMetrics()
	}
}

// New creates a Sanitizer. Call Close to stop its background work.
func New(cfg Config, opts ...Option) (*Sanitizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Sanitizer{
		cfg:    cfg,
		logger: slog.Default(),
		clock:  clock.Real(),
		rules:  DefaultRules(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "sanitizer")

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	cacheOpts := []cache.Option[[]time.Time]{cache.WithClock[[]time.Time](s.clock)}
	if s.registry != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[[]time.Time](s.registry, "sanitizer_ratelimit"))
	}
	windows, err := cache.NewTTL[[]time.Time](ctx, window, window, cacheOpts...)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "sanitizer", "New", "create rate-limit cache")
	}
	s.windows = windows

	violations, err := buffer.NewCircularBuffer[Violation](cfg.MaxViolations,
		buffer.WithOverflowPolicy[Violation](buffer.DropOldest))
	if err != nil {
		cancel()
		_ = windows.Close()
		return nil, errors.Wrap(err, "sanitizer", "New", "create violation log")
	}
	s.violations = violations

	if s.reporter != nil {
		s.reports = worker.NewPool(1, 16, s.report,
			worker.WithErrorHandler(func(v Violation, err error) {
				s.logger.Debug("Violation report failed", "type", v.Type, "error", err)
			}))
		if err := s.reports.Start(ctx); err != nil {
			cancel()
			_ = windows.Close()
			return nil, errors.Wrap(err, "sanitizer", "New", "start report worker")
		}
	}

	return s, nil
}

// Close stops the rate-limit sweeper and waits briefly for pending reports.
func (s *Sanitizer) Close() error {
	if s.reports != nil {
		if err := s.reports.Stop(5 * time.Second); err != nil {
			s.logger.Warn("Violation reports still pending at close", "error", err)
		}
	}
	s.cancel()
	return s.windows.Close()
}

// Config returns the sanitizer configuration.
func (s *Sanitizer) Config() Config {
	return s.cfg
}

// Enabled reports whether sanitization is on.
func (s *Sanitizer) Enabled() bool {
	return s.cfg.Enabled
}

// AddRule appends a rule to the end of the table. A rule with the same name
// is replaced and moves to the end, so the most recently added rule wins
// where patterns overlap.
func (s *Sanitizer) AddRule(rule Rule) error {
	if rule.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "sanitizer", "AddRule", "rule name required")
	}
	if rule.Pattern == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "sanitizer", "AddRule", "rule pattern required")
	}
	if rule.Category == "" {
		rule.Category = CategoryCustom
	}

	s.rulesMu.Lock()
	defer s.rulesMu.Unlock()
	s.rules = slices.DeleteFunc(s.rules, func(r Rule) bool { return r.Name == rule.Name })
	s.rules = append(s.rules, rule)
	return nil
}

// RemoveRule deletes the named rule and reports whether it existed.
func (s *Sanitizer) RemoveRule(name string) bool {
	s.rulesMu.Lock()
	defer s.rulesMu.Unlock()
	before := len(s.rules)
	s.rules = slices.DeleteFunc(s.rules, func(r Rule) bool { return r.Name == name })
	return len(s.rules) != before
}

// Rules returns a copy of the rule table in evaluation order.
func (s *Sanitizer) Rules() []Rule {
	s.rulesMu.RLock()
	defer s.rulesMu.RUnlock()
	return slices.Clone(s.rules)
}

// activeRules snapshots the rules whose gates are open.
func (s *Sanitizer) activeRules() []Rule {
	s.rulesMu.RLock()
	defer s.rulesMu.RUnlock()
	active := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if s.cfg.gateOpen(r.Gate) {
			active = append(active, r)
		}
	}
	return active
}

// SanitizeString redacts sensitive substrings from text.
func (s *Sanitizer) SanitizeString(text string) string {
	if !s.cfg.Enabled {
		return text
	}
	return s.sanitizeString(text, s.activeRules())
}

func (s *Sanitizer) sanitizeString(text string, rules []Rule) string {
	if text == "" {
		return text
	}
	// Repeat until stable so a replacement never leaves a fresh match behind
	for range maxFixedPasses {
		out := text
		if s.cfg.RedactURLs {
			out = s.redactURLs(out)
		}
		for _, r := range rules {
			out = r.Pattern.ReplaceAllString(out, r.Replacement)
		}
		if out == text {
			break
		}
		text = out
	}
	return text
}

func (s *Sanitizer) redactURLs(text string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(raw string) string {
		u, err := url.Parse(raw)
		if err != nil || !s.IsAllowedDomain(u.Host) {
			return URLMarker
		}
		return raw
	})
}

// Sanitize returns a redacted copy of v. Strings pass through the rule
// table; maps, slices and structs are walked and sensitive keys replaced
// wholesale; errors become event.ErrorInfo. Other scalars are returned
// unchanged. Sanitize never fails.
func (s *Sanitizer) Sanitize(v any) any {
	if !s.cfg.Enabled {
		return v
	}
	return s.sanitizeValue(v, s.activeRules(), 0)
}

// SanitizeEvent redacts an event's message and data.
func (s *Sanitizer) SanitizeEvent(ev event.DebugEvent) event.DebugEvent {
	if !s.cfg.Enabled {
		return ev
	}
	rules := s.activeRules()
	ev.Message = s.sanitizeString(ev.Message, rules)
	if ev.Data != nil {
		ev.Data = s.sanitizeValue(ev.Data, rules, 0)
	}
	return ev
}

// SanitizeError converts err into a redacted ErrorInfo. A nil err gives the
// zero ErrorInfo.
func (s *Sanitizer) SanitizeError(err error) event.ErrorInfo {
	return s.sanitizeError(err, s.activeRules(), 0)
}

func (s *Sanitizer) sanitizeValue(v any, rules []Rule, depth int) any {
	if depth > maxDepth {
		return depthMarker
	}

	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return s.sanitizeString(val, rules)
	case event.ErrorInfo:
		return s.sanitizeErrorInfo(val, rules, depth)
	case *event.ErrorInfo:
		if val == nil {
			return nil
		}
		return s.sanitizeErrorInfo(*val, rules, depth)
	case error:
		return s.sanitizeError(val, rules, depth)
	case map[string]any:
		return s.sanitizeMap(val, rules, depth)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = s.sanitizeValue(item, rules, depth+1)
		}
		return out
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return val
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer, reflect.Interface:
		generic, ok := toGeneric(v)
		if !ok {
			return s.sanitizeString(fmt.Sprint(v), rules)
		}
		return s.sanitizeValue(generic, rules, depth)
	case reflect.String:
		return s.sanitizeString(reflect.ValueOf(v).String(), rules)
	default:
		return v
	}
}

func (s *Sanitizer) sanitizeMap(m map[string]any, rules []Rule, depth int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if IsSensitiveKey(k) {
			out[k] = RedactedMarker
			continue
		}
		out[k] = s.sanitizeValue(v, rules, depth+1)
	}
	return out
}

type stackTracer interface {
	StackTrace() string
}

func (s *Sanitizer) sanitizeError(err error, rules []Rule, depth int) event.ErrorInfo {
	if err == nil {
		return event.ErrorInfo{}
	}
	if rv := reflect.ValueOf(err); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return event.ErrorInfo{Name: strings.TrimPrefix(rv.Type().String(), "*")}
	}
	info := event.ErrorInfo{
		Name:    errorName(err),
		Message: err.Error(),
	}
	if st, ok := err.(stackTracer); ok {
		info.Stack = st.StackTrace()
	}
	var ce *errors.ClassifiedError
	if stderrors.As(err, &ce) {
		info.Properties = map[string]any{
			"class":     ce.Class.String(),
			"component": ce.Component,
			"operation": ce.Operation,
		}
	}
	return s.sanitizeErrorInfo(info, rules, depth)
}

func (s *Sanitizer) sanitizeErrorInfo(info event.ErrorInfo, rules []Rule, depth int) event.ErrorInfo {
	out := event.ErrorInfo{
		Name:    info.Name,
		Message: s.sanitizeString(info.Message, rules),
		Stack:   s.sanitizeStack(info.Stack, rules),
	}
	if len(info.Properties) > 0 {
		out.Properties = s.sanitizeMap(info.Properties, rules, depth)
	}
	return out
}

func (s *Sanitizer) sanitizeStack(stack string, rules []Rule) string {
	if stack == "" {
		return ""
	}
	lines := strings.Split(stack, "\n")
	if depth := s.cfg.MaxStackTraceDepth; depth > 0 && len(lines) > depth {
		lines = lines[:depth]
	}
	for i, line := range lines {
		lines[i] = s.sanitizeString(line, rules)
	}
	return strings.Join(lines, "\n")
}

// IsSensitiveKey reports whether a map key names secret material.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// IsAllowedDomain reports whether host, or a parent domain of it, is in the
// allowed domain list. The port, if any, is ignored.
func (s *Sanitizer) IsAllowedDomain(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, d := range s.cfg.AllowedDomains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsBlockedUserAgent reports whether ua contains any blocked agent substring,
// ignoring case.
func (s *Sanitizer) IsBlockedUserAgent(ua string) bool {
	lower := strings.ToLower(ua)
	for _, blocked := range s.cfg.BlockedUserAgents {
		if b := strings.ToLower(strings.TrimSpace(blocked)); b != "" && strings.Contains(lower, b) {
			return true
		}
	}
	return false
}

// ShouldRateLimitErrorReporting records an occurrence of key and reports
// whether the caller should suppress it: true once key has been seen
// RateLimitMax times within the trailing RateLimitWindow. Suppressed calls
// are not recorded.
func (s *Sanitizer) ShouldRateLimitErrorReporting(key string) bool {
	if !s.cfg.RateLimitErrorReporting {
		return false
	}
	if key == "" {
		key = "_"
	}

	s.limitMu.Lock()
	defer s.limitMu.Unlock()

	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.RateLimitWindow)

	hits, _ := s.windows.Get(key)
	live := hits[:0:0]
	for _, t := range hits {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}

	limited := len(live) >= s.cfg.RateLimitMax
	if !limited {
		live = append(live, now)
	}
	_, _ = s.windows.Set(key, live)
	return limited
}

func errorName(err error) string {
	var ce *errors.ClassifiedError
	if stderrors.As(err, &ce) {
		return "ClassifiedError"
	}
	name := reflect.TypeOf(err).String()
	return strings.TrimPrefix(name, "*")
}

// toGeneric converts v to maps, slices and scalars through JSON.
func toGeneric(v any) (any, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false
	}
	return out, true
}
