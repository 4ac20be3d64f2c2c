package pipeline

import (
	"time"

	"github.com/c360/debugtel/errors"
)

// Config controls ingestion, queueing and upload behavior.
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// BatchSize is the most events sent per upload and the queue size that
	// triggers an immediate upload.
	BatchSize      int           `json:"batchSize" yaml:"batchSize"`
	UploadInterval time.Duration `json:"uploadInterval" yaml:"uploadInterval"`
	MaxQueueSize   int           `json:"maxQueueSize" yaml:"maxQueueSize"`

	// RetryAttempts is the number of retries after the first failed send.
	// RetryDelay times n is slept after the n-th failure; 0 retries at once.
	RetryAttempts int           `json:"retryAttempts" yaml:"retryAttempts"`
	RetryDelay    time.Duration `json:"retryDelay" yaml:"retryDelay"`

	// MinUploadInterval is the least time between two upload starts.
	MinUploadInterval time.Duration `json:"minUploadInterval" yaml:"minUploadInterval"`

	UploadOnError      bool `json:"uploadOnError" yaml:"uploadOnError"`
	UploadOnWarning    bool `json:"uploadOnWarning" yaml:"uploadOnWarning"`
	UploadInProduction bool `json:"uploadInProduction" yaml:"uploadInProduction"`

	// MaxEventDataSize bounds one serialized event in bytes.
	MaxEventDataSize int `json:"maxEventDataSize" yaml:"maxEventDataSize"`
	// MaxBatchSize bounds the summed event sizes of one batch in bytes.
	MaxBatchSize int `json:"maxBatchSize" yaml:"maxBatchSize"`

	// MaxHistorySize bounds the events retained for log file generation.
	MaxHistorySize int `json:"maxHistorySize" yaml:"maxHistorySize"`

	// FlushTimeout bounds the final upload made by Stop when the caller's
	// context has no deadline.
	FlushTimeout time.Duration `json:"flushTimeout" yaml:"flushTimeout"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		BatchSize:          50,
		UploadInterval:     30 * time.Second,
		MaxQueueSize:       1000,
		RetryAttempts:      3,
		RetryDelay:         time.Second,
		MinUploadInterval:  time.Second,
		UploadOnError:      true,
		UploadOnWarning:    true,
		UploadInProduction: false,
		MaxEventDataSize:   10 * 1024,
		MaxBatchSize:       512 * 1024,
		MaxHistorySize:     5000,
		FlushTimeout:       5 * time.Second,
	}
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "pipeline", "Validate", "batchSize must be positive")
	case c.MaxQueueSize <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "pipeline", "Validate", "maxQueueSize must be positive")
	case c.UploadInterval <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "pipeline", "Validate", "uploadInterval must be positive")
	case c.RetryAttempts < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "pipeline", "Validate", "retryAttempts must be >= 0")
	case c.RetryDelay < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "pipeline", "Validate", "retryDelay must be >= 0")
	case c.MinUploadInterval < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "pipeline", "Validate", "minUploadInterval must be >= 0")
	case c.MaxEventDataSize <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "pipeline", "Validate", "maxEventDataSize must be positive")
	case c.MaxBatchSize <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "pipeline", "Validate", "maxBatchSize must be positive")
	case c.MaxHistorySize <= 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "pipeline", "Validate", "maxHistorySize must be positive")
	case c.FlushTimeout < 0:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "pipeline", "Validate", "flushTimeout must be >= 0")
	}
	return nil
}
