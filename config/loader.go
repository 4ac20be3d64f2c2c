package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	pkgerrors "github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/transport"
)

// DefaultEnvPrefix prefixes every environment override
const DefaultEnvPrefix = "DEBUGTEL"

// durationKeys are the camelCase keys whose string values are durations
var durationKeys = map[string]bool{
	"uploadInterval":    true,
	"retryDelay":        true,
	"minUploadInterval": true,
	"flushTimeout":      true,
	"rateLimitWindow":   true,
	"timeout":           true,
	"writeTimeout":      true,
	"reconnectWait":     true,
	"drainTimeout":      true,
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  DefaultEnvPrefix,
		lookupEnv:  os.LookupEnv,
	}
}

// AddLayer adds a configuration file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the environment override prefix
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = strings.TrimSuffix(prefix, "_")
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges all layers onto the defaults, applies environment overrides
// and validates when enabled.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, pkgerrors.WrapInvalid(err, "Loader", "Load", "load "+path)
		}
		cfg, err = l.mergeFromMap(cfg, raw)
		if err != nil {
			return nil, pkgerrors.WrapInvalid(err, "Loader", "Load", "merge "+path)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, pkgerrors.WrapInvalid(err, "Loader", "Load", "apply environment overrides")
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadRaw reads one layer into a generic map, whatever its format
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch formatOf(path) {
	case formatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrParsingFailed, err)
		}
		// Re-encode so the depth limit applies to YAML too
		if data, err = json.Marshal(raw); err != nil {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrParsingFailed, err)
		}
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid config structure: %w", err)
		}
	case formatJSONC:
		data = jsonc.ToJSON(data)
		fallthrough
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrParsingFailed, err)
		}
	}

	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidConfig, err)
	}

	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// parseDurations converts duration strings under known keys to nanoseconds
// so they unmarshal into time.Duration fields.
func parseDurations(data map[string]any) error {
	for k, v := range data {
		switch val := v.(type) {
		case map[string]any:
			if err := parseDurations(val); err != nil {
				return err
			}
		case string:
			if !durationKeys[k] {
				continue
			}
			d, err := parseDurationWithDays(val)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", pkgerrors.ErrInvalidConfig, k, err)
			}
			data[k] = d.Nanoseconds()
		}
	}
	return nil
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// env returns a validated override value, or "" when unset
func (l *Loader) env(name string) (string, error) {
	key := l.envPrefix + "_" + name
	val, ok := l.lookupEnv(key)
	if !ok {
		return "", nil
	}
	if err := validateEnvVar(key, val); err != nil {
		return "", err
	}
	return strings.TrimSpace(val), nil
}

// applyEnvOverrides applies <PREFIX>_* environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) error {
		val, err := l.env(name)
		if err != nil || val == "" {
			return err
		}
		*dst = val
		return nil
	}
	list := func(name string, dst *[]string) error {
		val, err := l.env(name)
		if err != nil || val == "" {
			return err
		}
		*dst = strings.Split(val, ",")
		return nil
	}
	boolean := func(name string, dst *bool) error {
		val, err := l.env(name)
		if err != nil || val == "" {
			return err
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%s_%s: %w", l.envPrefix, name, err)
		}
		*dst = b
		return nil
	}
	integer := func(name string, dst *int) error {
		val, err := l.env(name)
		if err != nil || val == "" {
			return err
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s_%s: %w", l.envPrefix, name, err)
		}
		*dst = n
		return nil
	}
	duration := func(name string, dst *time.Duration) error {
		val, err := l.env(name)
		if err != nil || val == "" {
			return err
		}
		d, err := parseDurationWithDays(val)
		if err != nil {
			return fmt.Errorf("%s_%s: %w", l.envPrefix, name, err)
		}
		*dst = d
		return nil
	}
	kind := func(name string) error {
		var k string
		if err := str(name, &k); err != nil || k == "" {
			return err
		}
		cfg.Transport.Kind = transport.Kind(strings.ToLower(k))
		return nil
	}

	overrides := []func() error{
		func() error { return str("ENVIRONMENT", &cfg.Environment) },

		func() error { return boolean("PIPELINE_ENABLED", &cfg.Pipeline.Enabled) },
		func() error { return integer("BATCH_SIZE", &cfg.Pipeline.BatchSize) },
		func() error { return duration("UPLOAD_INTERVAL", &cfg.Pipeline.UploadInterval) },
		func() error { return integer("MAX_QUEUE_SIZE", &cfg.Pipeline.MaxQueueSize) },
		func() error { return boolean("UPLOAD_IN_PRODUCTION", &cfg.Pipeline.UploadInProduction) },

		func() error { return kind("TRANSPORT_KIND") },
		func() error { return str("API_ENDPOINT", &cfg.Transport.HTTP.APIEndpoint) },
		func() error { return str("REPORT_ENDPOINT", &cfg.Transport.HTTP.ReportEndpoint) },
		func() error { return list("KAFKA_BROKERS", &cfg.Transport.Kafka.Brokers) },
		func() error { return str("KAFKA_TOPIC", &cfg.Transport.Kafka.Topic) },
		func() error { return str("NATS_SUBJECT", &cfg.Transport.NATS.Subject) },

		func() error { return list("NATS_URLS", &cfg.NATS.URLs) },
		func() error { return str("NATS_USERNAME", &cfg.NATS.Username) },
		func() error { return str("NATS_PASSWORD", &cfg.NATS.Password) },
		func() error { return str("NATS_TOKEN", &cfg.NATS.Token) },
		func() error { return str("NATS_INGEST_SUBJECT", &cfg.NATS.IngestSubject) },
		func() error { return duration("NATS_DRAIN_TIMEOUT", &cfg.NATS.DrainTimeout) },

		func() error { return str("LOG_DIRECTORY", &cfg.LogFiles.Directory) },
		func() error { return str("LOG_DESTINATION", &cfg.LogFiles.Destination) },
		func() error { return boolean("AUTO_DOWNLOAD", &cfg.LogFiles.AutoDownload) },

		func() error { return boolean("SANITIZE", &cfg.Sanitizer.Enabled) },

		func() error { return boolean("METRICS_ENABLED", &cfg.Metrics.Enabled) },
		func() error { return integer("METRICS_PORT", &cfg.Metrics.Port) },
	}
	for _, apply := range overrides {
		if err := apply(); err != nil {
			return err
		}
	}
	return nil
}
