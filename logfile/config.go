package logfile

import (
	"github.com/c360/debugtel/errors"
)

// Destination kinds for generated files
const (
	DestinationDirectory   = "directory"
	DestinationObjectStore = "objectstore"
)

// Config controls how the history is partitioned and where files go.
type Config struct {
	// MaxFileSizeKB drops categories whose text exceeds this size.
	MaxFileSizeKB         int  `json:"maxFileSizeKB" yaml:"maxFileSizeKB"`
	CategorizeByType      bool `json:"categorizeByType" yaml:"categorizeByType"`
	CategorizeBySource    bool `json:"categorizeBySource" yaml:"categorizeBySource"`
	IncludeDateInFilename bool `json:"includeDateInFilename" yaml:"includeDateInFilename"`

	// AutoDownload writes every category and removes the written events from
	// the history once it holds DownloadThreshold events.
	AutoDownload      bool `json:"autoDownload" yaml:"autoDownload"`
	DownloadThreshold int  `json:"downloadThreshold" yaml:"downloadThreshold"`

	Destination string `json:"destination" yaml:"destination"`
	Directory   string `json:"directory" yaml:"directory"`
	Bucket      string `json:"bucket" yaml:"bucket"`
}

// DefaultConfig returns the default log file configuration.
func DefaultConfig() Config {
	return Config{
		MaxFileSizeKB:         5 * 1024,
		CategorizeByType:      true,
		CategorizeBySource:    true,
		IncludeDateInFilename: true,
		AutoDownload:          false,
		DownloadThreshold:     1000,
		Destination:           DestinationDirectory,
		Directory:             "debug-logs",
		Bucket:                "debugtel-logs",
	}
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.MaxFileSizeKB <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "logfile", "Validate", "maxFileSizeKB must be positive")
	}
	if c.AutoDownload && c.DownloadThreshold <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "logfile", "Validate", "downloadThreshold must be positive")
	}
	switch c.Destination {
	case "", DestinationDirectory:
		if c.Directory == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "logfile", "Validate", "directory is required")
		}
	case DestinationObjectStore:
		if c.Bucket == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "logfile", "Validate", "bucket is required")
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "logfile", "Validate",
			"destination must be one of: directory, objectstore")
	}
	return nil
}
