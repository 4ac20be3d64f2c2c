package metric

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/debugtel/health"
	"github.com/c360/debugtel/pkg/security"
)

func TestServer_MetricsEndpoint(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordEvent("queued")

	srv := NewServer(0, "", registry, security.Config{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(strings.Builder)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "debugtel_events_total")
}

func TestServer_HealthEndpoint(t *testing.T) {
	registry := NewMetricsRegistry()
	srv := NewServer(0, "/metrics", registry, security.Config{})

	current := health.NewHealthy("debugtel", "ok")
	srv.SetHealthFunc(func() health.Status { return current })

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	var status health.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", status.Status)

	current = health.NewUnhealthy("debugtel", "nats down")
	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_ExtraHandlers(t *testing.T) {
	srv := NewServer(0, "", NewMetricsRegistry(), security.Config{})
	srv.Handle("/stats", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"queuedEvents":0}`))
	}))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Address(t *testing.T) {
	srv := NewServer(9191, "/m", NewMetricsRegistry(), security.Config{})
	assert.Equal(t, "http://localhost:9191/m", srv.Address())
}
