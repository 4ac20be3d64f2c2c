package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/c360/debugtel/errors"
	"github.com/c360/debugtel/logfile"
	"github.com/c360/debugtel/pipeline"
	"github.com/c360/debugtel/pkg/security"
	"github.com/c360/debugtel/sanitizer"
	"github.com/c360/debugtel/transport"
)

// Environment names
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config represents the complete debugtel configuration
type Config struct {
	Environment string           `json:"environment" yaml:"environment"`
	Pipeline    pipeline.Config  `json:"pipeline" yaml:"pipeline"`
	LogFiles    logfile.Config   `json:"logFiles" yaml:"logFiles"`
	Sanitizer   sanitizer.Config `json:"sanitizer" yaml:"sanitizer"`
	Transport   transport.Config `json:"transport" yaml:"transport"`
	NATS        NATSConfig       `json:"nats" yaml:"nats"`
	Security    security.Config  `json:"security,omitempty" yaml:"security,omitempty"`
	Metrics     MetricsConfig    `json:"metrics" yaml:"metrics"`
}

// NATSConfig defines the shared NATS connection used by the nats transport,
// the object store destination and the optional ingest subscription.
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty" yaml:"urls,omitempty"`
	MaxReconnects int           `json:"maxReconnects,omitempty" yaml:"maxReconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnectWait,omitempty" yaml:"reconnectWait,omitempty"`
	DrainTimeout  time.Duration `json:"drainTimeout,omitempty" yaml:"drainTimeout,omitempty"`
	Username      string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password      string        `json:"password,omitempty" yaml:"password,omitempty"`
	Token         string        `json:"token,omitempty" yaml:"token,omitempty"`

	// IngestSubject, when set, is subscribed to for JSON encoded events.
	IngestSubject string `json:"ingestSubject,omitempty" yaml:"ingestSubject,omitempty"`
}

// MetricsConfig configures the local metrics, health and ingest server
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// Default returns the built-in configuration every loaded layer is merged onto.
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Pipeline:    pipeline.DefaultConfig(),
		LogFiles:    logfile.DefaultConfig(),
		Sanitizer:   sanitizer.DefaultConfig(),
		Transport:   transport.DefaultConfig(),
		NATS: NATSConfig{
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			DrainTimeout:  10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// IsProduction reports whether the host environment is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// NeedsNATS reports whether any configured component uses the NATS connection.
func (c *Config) NeedsNATS() bool {
	return c.Transport.Kind == transport.KindNATS ||
		c.LogFiles.Destination == logfile.DestinationObjectStore ||
		c.NATS.IngestSubject != ""
}

// NATSURL returns the connection URL list in the form nats.Connect accepts.
func (c *Config) NATSURL() string {
	if len(c.NATS.URLs) > 0 {
		return strings.Join(c.NATS.URLs, ",")
	}
	return c.Transport.NATS.URL
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{
		config: cfg,
	}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return pkgerrors.WrapInvalid(pkgerrors.ErrMissingConfig, "SafeConfig", "Update", "config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg.Clone()
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}

	// JSON round trip copies the slices and maps
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// Validate checks every section of the configuration
func (c *Config) Validate() error {
	switch strings.ToLower(c.Environment) {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return pkgerrors.WrapInvalid(
			fmt.Errorf("%w: environment %q", pkgerrors.ErrInvalidConfig, c.Environment),
			"Config", "Validate", "check environment")
	}

	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if err := c.LogFiles.Validate(); err != nil {
		return err
	}
	if err := c.Sanitizer.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}

	if c.NeedsNATS() && c.NATSURL() == "" {
		return pkgerrors.WrapInvalid(pkgerrors.ErrMissingConfig, "Config", "Validate", "nats.urls is required")
	}
	if c.NATS.DrainTimeout < 0 {
		return pkgerrors.WrapInvalid(
			fmt.Errorf("%w: nats.drainTimeout %v", pkgerrors.ErrInvalidConfig, c.NATS.DrainTimeout),
			"Config", "Validate", "check nats drain timeout")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return pkgerrors.WrapInvalid(
				fmt.Errorf("%w: metrics.port %d", pkgerrors.ErrInvalidConfig, c.Metrics.Port),
				"Config", "Validate", "check metrics port")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return pkgerrors.WrapInvalid(
				fmt.Errorf("%w: metrics.path %q must start with /", pkgerrors.ErrInvalidConfig, c.Metrics.Path),
				"Config", "Validate", "check metrics path")
		}
	}

	if err := c.validateSecurity(); err != nil {
		return pkgerrors.WrapInvalid(err, "Config", "Validate", "security configuration")
	}

	return nil
}

// validateSecurity validates the security configuration
func (c *Config) validateSecurity() error {
	server := c.Security.TLS.Server
	if server.Enabled {
		if server.CertFile == "" {
			return fmt.Errorf("%w: tls.server.certFile is required when TLS is enabled", pkgerrors.ErrMissingConfig)
		}
		if server.KeyFile == "" {
			return fmt.Errorf("%w: tls.server.keyFile is required when TLS is enabled", pkgerrors.ErrMissingConfig)
		}

		if _, err := os.Stat(server.CertFile); err != nil {
			return fmt.Errorf("tls.server.certFile: %w", err)
		}
		if _, err := os.Stat(server.KeyFile); err != nil {
			return fmt.Errorf("tls.server.keyFile: %w", err)
		}

		if server.MinVersion != "" {
			if err := validateTLSVersion(server.MinVersion); err != nil {
				return fmt.Errorf("tls.server.minVersion: %w", err)
			}
		}
	}

	client := c.Security.TLS.Client
	for i, caFile := range client.CAFiles {
		if _, err := os.Stat(caFile); err != nil {
			return fmt.Errorf("tls.client.caFiles[%d]: %w", i, err)
		}
	}

	if client.InsecureSkipVerify {
		if c.IsProduction() {
			return fmt.Errorf("%w: tls.client.insecureSkipVerify is not allowed in production", pkgerrors.ErrInvalidConfig)
		}
		_, _ = fmt.Fprintf(
			os.Stderr,
			"WARNING: TLS certificate verification is disabled (insecureSkipVerify=true). This should only be used in development/testing!\n",
		)
	}

	if client.MinVersion != "" {
		if err := validateTLSVersion(client.MinVersion); err != nil {
			return fmt.Errorf("tls.client.minVersion: %w", err)
		}
	}

	return nil
}

// validateTLSVersion checks if a TLS version string is valid
func validateTLSVersion(version string) error {
	switch version {
	case "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("%w: TLS version %q (must be \"1.2\" or \"1.3\")", pkgerrors.ErrInvalidConfig, version)
	}
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return pkgerrors.WrapInvalid(err, "Config", "SaveToFile", "marshal config")
	}

	if err := safeWriteFile(path, data); err != nil {
		return pkgerrors.Wrap(err, "Config", "SaveToFile", "write "+path)
	}
	return nil
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := c.Clone()
	if masked.NATS.Password != "" {
		masked.NATS.Password = "***"
	}
	if masked.NATS.Token != "" {
		masked.NATS.Token = "***"
	}
	for k := range masked.Transport.HTTP.Headers {
		if sanitizer.IsSensitiveKey(k) {
			masked.Transport.HTTP.Headers[k] = "***"
		}
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}
