package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPaths     []string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	ExportOnExit    bool
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

// configList collects repeated --config flags into ordered layers
type configList []string

func (c *configList) String() string { return strings.Join(*c, ",") }

func (c *configList) Set(v string) error {
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*c = append(*c, p)
		}
	}
	return nil
}

func parseFlags(fs *flag.FlagSet, args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}

	var layers configList
	if env := getEnv("DEBUGTEL_CONFIG", ""); env != "" {
		_ = layers.Set(env)
	}

	// Repeated or comma-separated, after any DEBUGTEL_CONFIG layers; later layers win
	fs.Var(&layers, "config",
		"Configuration file layer, repeatable: .json, .jsonc, .yaml (env: DEBUGTEL_CONFIG)")
	fs.Var(&layers, "c", "Shorthand for --config")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("DEBUGTEL_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: DEBUGTEL_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("DEBUGTEL_LOG_FORMAT", "json"),
		"Log format: json, text (env: DEBUGTEL_LOG_FORMAT)")

	fs.BoolVar(&cfg.Debug, "debug",
		getEnvBool("DEBUGTEL_DEBUG", false),
		"Enable debug mode (env: DEBUGTEL_DEBUG)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("DEBUGTEL_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: DEBUGTEL_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ExportOnExit, "export-on-exit",
		getEnvBool("DEBUGTEL_EXPORT_ON_EXIT", false),
		"Write log files and a JSON export on shutdown (env: DEBUGTEL_EXPORT_ON_EXIT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() {
		printDetailedHelp(fs)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.ConfigPaths = layers

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	for _, path := range cfg.ConfigPaths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config file not found: %s", path)
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(fs.Output(), `%s - client-side debug telemetry pipeline

Usage: %s [options]

Options:
`, appName, os.Args[0])
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(fs.Output(), `
Examples:
  # Run with layered configuration
  %s --config=configs/debugtel.yaml --config=configs/production.jsonc

  # Run with debug logging
  %s --log-level=debug --log-format=text

  # Run with environment variables
  export DEBUGTEL_CONFIG=/etc/debugtel/debugtel.yaml
  export DEBUGTEL_API_ENDPOINT=https://collector.example.com/api/debug/events
  %s

  # Validate configuration only
  %s --validate

Environment:
  DEBUGTEL_ENV_FILE  dotenv file loaded before flags are read (default .env)

Signals:
  SIGINT, SIGTERM  flush queued events and exit
  SIGUSR1          write log files and a JSON export

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
