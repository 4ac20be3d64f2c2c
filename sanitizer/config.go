package sanitizer

import (
	"time"

	"github.com/c360/debugtel/errors"
)

// Config controls which redactions run and how error reporting is throttled.
type Config struct {
	Enabled            bool     `json:"enableSanitization" yaml:"enableSanitization"`
	RedactURLs         bool     `json:"redactUrls" yaml:"redactUrls"`
	RedactUserData     bool     `json:"redactUserData" yaml:"redactUserData"`
	RedactAPIKeys      bool     `json:"redactApiKeys" yaml:"redactApiKeys"`
	RedactTokens       bool     `json:"redactTokens" yaml:"redactTokens"`
	RedactLongTokens   bool     `json:"redactLongTokens" yaml:"redactLongTokens"`
	MaxStackTraceDepth int      `json:"maxStackTraceDepth" yaml:"maxStackTraceDepth"`
	AllowedDomains     []string `json:"allowedDomains" yaml:"allowedDomains"`
	BlockedUserAgents  []string `json:"blockedUserAgents" yaml:"blockedUserAgents"`

	RateLimitErrorReporting bool          `json:"rateLimitErrorReporting" yaml:"rateLimitErrorReporting"`
	RateLimitWindow         time.Duration `json:"rateLimitWindow" yaml:"rateLimitWindow"`
	RateLimitMax            int           `json:"rateLimitMax" yaml:"rateLimitMax"`

	// MaxViolations bounds the retained security violation history.
	MaxViolations int `json:"maxViolations" yaml:"maxViolations"`
}

// DefaultConfig returns the default sanitizer configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:                 true,
		RedactURLs:              false,
		RedactUserData:          true,
		RedactAPIKeys:           true,
		RedactTokens:            true,
		RedactLongTokens:        true,
		MaxStackTraceDepth:      10,
		RateLimitErrorReporting: true,
		RateLimitWindow:         time.Minute,
		RateLimitMax:            10,
		MaxViolations:           100,
	}
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.MaxStackTraceDepth < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "sanitizer", "Validate", "maxStackTraceDepth must be >= 0")
	}
	if c.RateLimitErrorReporting {
		if c.RateLimitWindow <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "sanitizer", "Validate", "rateLimitWindow must be positive")
		}
		if c.RateLimitMax <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "sanitizer", "Validate", "rateLimitMax must be positive")
		}
	}
	if c.MaxViolations <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "sanitizer", "Validate", "maxViolations must be positive")
	}
	return nil
}
