package transport

import (
	"fmt"
	"net/url"
	"time"

	"github.com/c360/debugtel/errors"
)

// Kind selects a transport implementation.
type Kind string

// Known transport kinds.
const (
	KindHTTP  Kind = "http"
	KindNATS  Kind = "nats"
	KindKafka Kind = "kafka"
)

// Config selects and configures the upload transport.
type Config struct {
	Kind  Kind        `json:"kind" yaml:"kind"`
	HTTP  HTTPConfig  `json:"http" yaml:"http"`
	NATS  NATSConfig  `json:"nats" yaml:"nats"`
	Kafka KafkaConfig `json:"kafka" yaml:"kafka"`
}

// HTTPConfig configures the HTTP POST transport.
type HTTPConfig struct {
	APIEndpoint    string            `json:"apiEndpoint" yaml:"apiEndpoint"`
	ReportEndpoint string            `json:"reportEndpoint,omitempty" yaml:"reportEndpoint,omitempty"`
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timeout        time.Duration     `json:"timeout" yaml:"timeout"`
	Compress       bool              `json:"compress" yaml:"compress"`
}

// NATSConfig configures the NATS request/reply transport.
type NATSConfig struct {
	URL     string        `json:"url" yaml:"url"`
	Subject string        `json:"subject" yaml:"subject"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// KafkaConfig configures the Kafka transport.
type KafkaConfig struct {
	Brokers      []string      `json:"brokers" yaml:"brokers"`
	Topic        string        `json:"topic" yaml:"topic"`
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	RequiredAcks int           `json:"requiredAcks" yaml:"requiredAcks"`
}

// DefaultConfig posts to a local collector.
func DefaultConfig() Config {
	return Config{
		Kind: KindHTTP,
		HTTP: HTTPConfig{
			APIEndpoint: "http://localhost:8080/api/debug/events",
			Timeout:     30 * time.Second,
		},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "debugtel.upload",
			Timeout: 10 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:      []string{"localhost:9092"},
			Topic:        "debugtel.events",
			WriteTimeout: 10 * time.Second,
			RequiredAcks: -1,
		},
	}
}

// Validate checks the settings of the selected kind only.
func (c Config) Validate() error {
	switch c.Kind {
	case KindHTTP, "":
		return c.HTTP.Validate()
	case KindNATS:
		return c.NATS.Validate()
	case KindKafka:
		return c.Kafka.Validate()
	default:
		return errors.WrapInvalid(fmt.Errorf("%w: unknown transport kind %q", errors.ErrInvalidConfig, c.Kind),
			"transport", "Validate", "check kind")
	}
}

// Validate checks the HTTP settings
func (c HTTPConfig) Validate() error {
	if c.APIEndpoint == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "HTTPConfig", "Validate", "apiEndpoint is required")
	}
	for _, raw := range []string{c.APIEndpoint, c.ReportEndpoint} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return errors.WrapInvalid(err, "HTTPConfig", "Validate", "parse endpoint")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.WrapInvalid(fmt.Errorf("%w: endpoint scheme %q", errors.ErrInvalidConfig, u.Scheme),
				"HTTPConfig", "Validate", "check endpoint scheme")
		}
	}
	if c.Timeout < 0 || c.Timeout > 5*time.Minute {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "HTTPConfig", "Validate",
			"timeout must be between 0 and 5m")
	}
	return nil
}

// Validate checks the NATS settings
func (c NATSConfig) Validate() error {
	if c.Subject == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "NATSConfig", "Validate", "subject is required")
	}
	if c.Timeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "NATSConfig", "Validate", "timeout must not be negative")
	}
	return nil
}

// Validate checks the Kafka settings
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "KafkaConfig", "Validate", "at least one broker is required")
	}
	if c.Topic == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "KafkaConfig", "Validate", "topic is required")
	}
	if c.RequiredAcks < -1 || c.RequiredAcks > 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "KafkaConfig", "Validate", "requiredAcks must be -1, 0 or 1")
	}
	return nil
}
