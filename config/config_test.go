package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/logfile"
	"github.com/c360/debugtel/transport"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestLoader(env map[string]string) *Loader {
	l := NewLoader()
	l.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return l
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.NeedsNATS())
	assert.Equal(t, 50, cfg.Pipeline.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.UploadInterval)
	assert.Equal(t, 5120, cfg.LogFiles.MaxFileSizeKB)
	assert.True(t, cfg.Sanitizer.Enabled)
	assert.Equal(t, transport.KindHTTP, cfg.Transport.Kind)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown environment", func(c *Config) { c.Environment = "staging" }},
		{"zero batch size", func(c *Config) { c.Pipeline.BatchSize = 0 }},
		{"bad log destination", func(c *Config) { c.LogFiles.Destination = "s3" }},
		{"bad sanitizer depth", func(c *Config) { c.Sanitizer.MaxStackTraceDepth = -1 }},
		{"unknown transport", func(c *Config) { c.Transport.Kind = "carrier-pigeon" }},
		{"metrics port", func(c *Config) { c.Metrics.Port = 70000 }},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }},
		{"nats without url", func(c *Config) {
			c.LogFiles.Destination = logfile.DestinationObjectStore
			c.Transport.NATS.URL = ""
		}},
		{"negative drain timeout", func(c *Config) { c.NATS.DrainTimeout = -time.Second }},
		{"tls without cert", func(c *Config) { c.Security.TLS.Server.Enabled = true }},
		{"tls version", func(c *Config) { c.Security.TLS.Client.MinVersion = "1.1" }},
		{"insecure in production", func(c *Config) {
			c.Environment = EnvProduction
			c.Security.TLS.Client.InsecureSkipVerify = true
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err), "expected invalid error, got %v", err)
		})
	}
}

func TestValidate_MetricsDisabledSkipsPort(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Enabled = false
	cfg.Metrics.Port = 0
	assert.NoError(t, cfg.Validate())
}

func TestNeedsNATS(t *testing.T) {
	cfg := Default()
	cfg.Transport.Kind = transport.KindNATS
	assert.True(t, cfg.NeedsNATS())
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL())

	cfg.NATS.URLs = []string{"nats://a:4222", "nats://b:4222"}
	assert.Equal(t, "nats://a:4222,nats://b:4222", cfg.NATSURL())

	cfg = Default()
	cfg.NATS.IngestSubject = "debug.events"
	assert.True(t, cfg.NeedsNATS())
}

func TestLoader_JSONLayers(t *testing.T) {
	base := writeFile(t, "base.json", `{
		"environment": "test",
		"pipeline": {"batchSize": 20, "uploadInterval": "10s"},
		"logFiles": {"directory": "/tmp/base-logs"}
	}`)
	override := writeFile(t, "override.json", `{
		"pipeline": {"batchSize": 5, "retryDelay": "250ms"},
		"transport": {"http": {"apiEndpoint": "https://collector.example.com/events"}}
	}`)

	l := newTestLoader(nil)
	l.AddLayer(base)
	l.AddLayer(override)
	l.EnableValidation(true)

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, EnvTest, cfg.Environment)
	assert.Equal(t, 5, cfg.Pipeline.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.UploadInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.RetryDelay)
	assert.Equal(t, "/tmp/base-logs", cfg.LogFiles.Directory)
	assert.Equal(t, "https://collector.example.com/events", cfg.Transport.HTTP.APIEndpoint)

	// Untouched keys keep their defaults
	assert.Equal(t, 1000, cfg.Pipeline.MaxQueueSize)
	assert.True(t, cfg.Pipeline.UploadOnError)
	assert.Equal(t, time.Minute, cfg.Sanitizer.RateLimitWindow)
}

func TestLoader_JSONC(t *testing.T) {
	path := writeFile(t, "debugtel.jsonc", `{
		// collector
		"transport": {
			"kind": "kafka",
			"kafka": {"brokers": ["k1:9092"], "topic": "dbg", "writeTimeout": "3s"}, /* trailing comma ok */
		},
	}`)

	cfg, err := newTestLoader(nil).LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, transport.KindKafka, cfg.Transport.Kind)
	assert.Equal(t, []string{"k1:9092"}, cfg.Transport.Kafka.Brokers)
	assert.Equal(t, "dbg", cfg.Transport.Kafka.Topic)
	assert.Equal(t, 3*time.Second, cfg.Transport.Kafka.WriteTimeout)
}

func TestLoader_YAML(t *testing.T) {
	path := writeFile(t, "debugtel.yaml", `
environment: production
pipeline:
  batchSize: 25
  minUploadInterval: 2s
  uploadInProduction: true
sanitizer:
  rateLimitWindow: 1d
  allowedDomains:
    - example.com
logFiles:
  autoDownload: true
  downloadThreshold: 200
metrics:
  port: 9191
`)

	l := newTestLoader(nil)
	l.EnableValidation(true)
	cfg, err := l.LoadFile(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 25, cfg.Pipeline.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.MinUploadInterval)
	assert.True(t, cfg.Pipeline.UploadInProduction)
	assert.Equal(t, 24*time.Hour, cfg.Sanitizer.RateLimitWindow)
	assert.Equal(t, []string{"example.com"}, cfg.Sanitizer.AllowedDomains)
	assert.True(t, cfg.LogFiles.AutoDownload)
	assert.Equal(t, 200, cfg.LogFiles.DownloadThreshold)
	assert.Equal(t, 9191, cfg.Metrics.Port)
}

func TestLoader_EnvOverrides(t *testing.T) {
	path := writeFile(t, "base.json", `{"pipeline": {"batchSize": 20}}`)

	l := newTestLoader(map[string]string{
		"DEBUGTEL_ENVIRONMENT":        "production",
		"DEBUGTEL_BATCH_SIZE":         "7",
		"DEBUGTEL_UPLOAD_INTERVAL":    "1m",
		"DEBUGTEL_TRANSPORT_KIND":     "NATS",
		"DEBUGTEL_NATS_URLS":          "nats://a:4222,nats://b:4222",
		"DEBUGTEL_AUTO_DOWNLOAD":      "true",
		"DEBUGTEL_METRICS_PORT":       "9300",
		"DEBUGTEL_API_ENDPOINT":       " https://override.example.com/e ",
		"DEBUGTEL_NATS_DRAIN_TIMEOUT": "3s",
	})
	l.AddLayer(path)

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, 7, cfg.Pipeline.BatchSize)
	assert.Equal(t, time.Minute, cfg.Pipeline.UploadInterval)
	assert.Equal(t, transport.KindNATS, cfg.Transport.Kind)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.True(t, cfg.LogFiles.AutoDownload)
	assert.Equal(t, 9300, cfg.Metrics.Port)
	assert.Equal(t, "https://override.example.com/e", cfg.Transport.HTTP.APIEndpoint)
	assert.Equal(t, 3*time.Second, cfg.NATS.DrainTimeout)
}

func TestLoader_EnvOverrideErrors(t *testing.T) {
	tests := map[string]string{
		"DEBUGTEL_BATCH_SIZE":       "many",
		"DEBUGTEL_PIPELINE_ENABLED": "sometimes",
		"DEBUGTEL_UPLOAD_INTERVAL":  "soon",
		"DEBUGTEL_NATS_TOKEN":       "abc\x00def",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := newTestLoader(map[string]string{key: val}).Load()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestLoader_CustomPrefix(t *testing.T) {
	l := newTestLoader(map[string]string{"APP_BATCH_SIZE": "3", "DEBUGTEL_BATCH_SIZE": "9"})
	l.SetEnvPrefix("APP_")

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pipeline.BatchSize)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unsupported extension", "debugtel.toml", `batchSize = 1`},
		{"malformed json", "bad.json", `{"pipeline": `},
		{"malformed yaml", "bad.yaml", "pipeline:\n  - [unclosed"},
		{"bad duration", "dur.json", `{"pipeline": {"uploadInterval": "fortnight"}}`},
		{"wrong type", "type.json", `{"pipeline": {"batchSize": "fifty"}}`},
		{"too deep", "deep.json", `{"a":` + strings.Repeat(`[`, 120) + strings.Repeat(`]`, 120) + `}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := newTestLoader(nil).LoadFile(path)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err), "expected invalid error, got %v", err)
		})
	}
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := newTestLoader(nil).LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoader_ValidationEnabled(t *testing.T) {
	path := writeFile(t, "invalid.json", `{"pipeline": {"maxQueueSize": 0}}`)

	l := newTestLoader(nil)
	_, err := l.LoadFile(path)
	require.NoError(t, err, "validation is off by default")

	l.EnableValidation(true)
	_, err = l.LoadFile(path)
	assert.True(t, errors.IsInvalid(err))
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Environment = EnvTest
	cfg.Pipeline.BatchSize = 12
	cfg.Sanitizer.BlockedUserAgents = []string{"curl"}

	path := filepath.Join(t.TempDir(), "saved.json")
	require.NoError(t, cfg.SaveToFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := newTestLoader(nil).LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Default()
	cfg.NATS.URLs = []string{"nats://a:4222"}
	cfg.Transport.HTTP.Headers = map[string]string{"X-App": "web"}

	clone := cfg.Clone()
	clone.NATS.URLs[0] = "nats://changed:4222"
	clone.Transport.HTTP.Headers["X-App"] = "changed"

	assert.Equal(t, "nats://a:4222", cfg.NATS.URLs[0])
	assert.Equal(t, "web", cfg.Transport.HTTP.Headers["X-App"])

	var nilCfg *Config
	assert.Equal(t, Default(), nilCfg.Clone())
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.NATS.Password = "hunter2"
	cfg.NATS.Token = "s3cret-token"
	cfg.Transport.HTTP.Headers = map[string]string{"Authorization": "Bearer abc", "X-App": "web"}

	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "s3cret-token")
	assert.NotContains(t, out, "Bearer abc")
	assert.Contains(t, out, `"X-App": "web"`)

	// The receiver is untouched
	assert.Equal(t, "hunter2", cfg.NATS.Password)
}

func TestSafeConfig(t *testing.T) {
	sc := NewSafeConfig(nil)
	assert.Equal(t, Default(), sc.Get())

	got := sc.Get()
	got.Pipeline.BatchSize = 999
	assert.Equal(t, 50, sc.Get().Pipeline.BatchSize, "Get returns a copy")

	invalid := Default()
	invalid.Pipeline.BatchSize = 0
	assert.True(t, errors.IsInvalid(sc.Update(invalid)))
	assert.True(t, errors.IsInvalid(sc.Update(nil)))

	next := Default()
	next.Pipeline.BatchSize = 10
	require.NoError(t, sc.Update(next))
	next.Pipeline.BatchSize = 11
	assert.Equal(t, 10, sc.Get().Pipeline.BatchSize, "Update stores a copy")
}

func TestSafeConfig_Concurrent(t *testing.T) {
	sc := NewSafeConfig(Default())

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			cfg := Default()
			cfg.Pipeline.BatchSize = n
			assert.NoError(t, sc.Update(cfg))
		}(i)
		go func() {
			defer wg.Done()
			assert.Positive(t, sc.Get().Pipeline.BatchSize)
		}()
	}
	wg.Wait()
}
