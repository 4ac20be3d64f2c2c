// Package httppost posts upload batches to an HTTP collector endpoint.
package httppost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/health"
	"github.com/c360/debugtel/pkg/security"
	"github.com/c360/debugtel/pkg/tlsutil"
	"github.com/c360/debugtel/sanitizer"
	"github.com/c360/debugtel/transport"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 1 << 20
	contentTypeJSON  = "application/json"
)

// Transport sends batches as JSON POST requests.
type Transport struct {
	endpoint       string
	reportEndpoint string
	headers        map[string]string
	compress       bool
	httpClient     *http.Client
	logger         *slog.Logger

	batchesSent    atomic.Int64
	batchesFailed  atomic.Int64
	reportsSent    atomic.Int64
	lastFailed     atomic.Bool
	lastError      atomic.Value // string
	lastActivityMu sync.RWMutex
	lastActivity   time.Time
	startTime      time.Time
}

// Option configures a Transport
type Option func(*Transport)

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		if c != nil {
			t.httpClient = c
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates an HTTP transport. Client TLS is configured from securityCfg
// when it is enabled.
func New(cfg transport.HTTPConfig, securityCfg security.Config, opts ...Option) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{Timeout: timeout}

	clientTLS := securityCfg.TLS.Client
	if clientTLS.Enabled || len(clientTLS.CAFiles) > 0 || clientTLS.MTLS.Enabled {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(clientTLS)
		if err != nil {
			return nil, errors.WrapFatal(err, "httppost", "New", "load client TLS config")
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig:   tlsConfig,
			ForceAttemptHTTP2: true,
		}
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	t := &Transport{
		endpoint:       cfg.APIEndpoint,
		reportEndpoint: cfg.ReportEndpoint,
		headers:        headers,
		compress:       cfg.Compress,
		httpClient:     httpClient,
		logger:         slog.Default().With("component", "httppost"),
		startTime:      time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Register adds the http kind to a transport registry
func Register(r *transport.Registry) error {
	return r.Register(transport.KindHTTP, func(cfg transport.Config, deps transport.Dependencies) (transport.Transport, error) {
		return New(cfg.HTTP, deps.Security, WithLogger(deps.GetLogger("httppost")))
	})
}

// Send posts the batch and checks the collector's reply.
func (t *Transport) Send(ctx context.Context, batch transport.Batch) error {
	body, err := transport.Encode(batch)
	if err != nil {
		return err
	}

	respBody, err := t.post(ctx, t.endpoint, body, map[string]string{
		transport.HeaderIdempotencyKey: batch.Key,
	})
	if err == nil {
		err = transport.DecodeResponse(respBody)
	}

	t.touch()
	if err != nil {
		t.batchesFailed.Add(1)
		t.lastFailed.Store(true)
		t.lastError.Store(errors.Truncate(err, 200))
		t.logger.Debug("Batch upload failed", "key", batch.Key, "events", len(batch.Events), "error", err)
		return err
	}

	t.batchesSent.Add(1)
	t.lastFailed.Store(false)
	return nil
}

// ReportViolation posts a critical security violation to the report
// endpoint. Without a report endpoint it does nothing.
func (t *Transport) ReportViolation(ctx context.Context, v sanitizer.Violation) error {
	if t.reportEndpoint == "" {
		return nil
	}

	body, err := json.Marshal(v)
	if err != nil {
		return errors.WrapInvalid(err, "httppost", "ReportViolation", "marshal violation")
	}

	if _, err := t.post(ctx, t.reportEndpoint, body, nil); err != nil {
		return err
	}
	t.reportsSent.Add(1)
	return nil
}

// post sends a single HTTP POST request and returns the response body of a
// 2xx reply.
func (t *Transport) post(ctx context.Context, url string, data []byte, extra map[string]string) ([]byte, error) {
	var contentEncoding string
	if t.compress {
		compressed, err := gzipBytes(data)
		if err != nil {
			return nil, errors.WrapInvalid(err, "httppost", "post", "compress body")
		}
		data = compressed
		contentEncoding = "gzip"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, errors.WrapInvalid(err, "httppost", "post", "build request")
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	if contentEncoding != "" {
		req.Header.Set("Content-Encoding", contentEncoding)
	}
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}
	for key, value := range extra {
		req.Header.Set(key, value)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrTransportFailed, err), "httppost", "post", "send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	// Drain the rest so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.WrapTransient(fmt.Errorf("%w: HTTP %d", errors.ErrUnexpectedStatus, resp.StatusCode),
			"httppost", "post", "check status")
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "httppost", "post", "read response")
	}
	return respBody, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Transport) touch() {
	t.lastActivityMu.Lock()
	t.lastActivity = time.Now()
	t.lastActivityMu.Unlock()
}

// Close releases idle connections
func (t *Transport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

// Health reports degraded once the most recent batch failed.
func (t *Transport) Health() health.Status {
	t.lastActivityMu.RLock()
	lastActivity := t.lastActivity
	t.lastActivityMu.RUnlock()

	metrics := &health.Metrics{
		Uptime:          time.Since(t.startTime),
		ErrorCount:      int(t.batchesFailed.Load()),
		EventsProcessed: t.batchesSent.Load(),
		LastActivity:    lastActivity,
	}

	if t.lastFailed.Load() {
		lastErr, _ := t.lastError.Load().(string)
		return health.NewDegraded("httppost", lastErr).WithMetrics(metrics)
	}
	return health.NewHealthy("httppost", "posting to "+t.endpoint).WithMetrics(metrics)
}

// Stats is a point-in-time copy of transport counters
type Stats struct {
	BatchesSent   int64 `json:"batchesSent"`
	BatchesFailed int64 `json:"batchesFailed"`
	ReportsSent   int64 `json:"reportsSent"`
}

// Stats returns the transport counters
func (t *Transport) Stats() Stats {
	return Stats{
		BatchesSent:   t.batchesSent.Load(),
		BatchesFailed: t.batchesFailed.Load(),
		ReportsSent:   t.reportsSent.Load(),
	}
}
