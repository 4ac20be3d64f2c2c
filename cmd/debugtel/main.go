// Package main implements the debugtel host process: it loads configuration,
// assembles the telemetry pipeline with its transport, sanitizer and log file
// generator, and serves local ingest, stats, health and metrics endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/c360/debugtel/config"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "debugtel"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := loadEnvFile(getEnv("DEBUGTEL_ENV_FILE", ".env")); err != nil {
		return err
	}

	cliCfg, logger, shouldExit, err := initializeCLI(args)
	if shouldExit || err != nil {
		return err
	}

	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "layers", cliCfg.ConfigPaths)
		return nil
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	return runWithSignalHandling(ctx, a, cliCfg)
}

// loadEnvFile loads a dotenv file without overriding variables already set.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// initializeCLI parses flags and sets up logging
func initializeCLI(args []string) (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg, err := parseFlags(flag.NewFlagSet(appName, flag.ContinueOnError), args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, true, nil
		}
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		helpFlags := flag.NewFlagSet(appName, flag.ContinueOnError)
		_, _ = parseFlags(helpFlags, nil)
		printDetailedHelp(helpFlags)
		return nil, nil, true, nil
	}

	logger := setupLogger(os.Stdout, cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting debugtel (client-side debug telemetry)",
		"version", Version,
		"build_time", BuildTime,
		"config_layers", cliCfg.ConfigPaths)

	return cliCfg, logger, false, nil
}

// initializeConfiguration loads and validates configuration
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	for _, path := range cliCfg.ConfigPaths {
		loader.AddLayer(path)
	}
	loader.EnableValidation(true)

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	slog.Info("Configuration loaded",
		"environment", cfg.Environment,
		"transport", cfg.Transport.Kind,
		"log_destination", cfg.LogFiles.Destination,
		"uploads_enabled", cfg.Pipeline.Enabled)

	return cfg, nil
}

// runWithSignalHandling starts the app and stops it on SIGINT or SIGTERM.
// SIGUSR1 writes log files and a JSON export without stopping.
func runWithSignalHandling(ctx context.Context, a *app, cliCfg *CLIConfig) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := a.start(signalCtx); err != nil {
		_ = a.shutdown(context.Background(), false)
		return fmt.Errorf("start: %w", err)
	}

	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)

	g, gctx := errgroup.WithContext(signalCtx)

	if a.server != nil {
		g.Go(func() error {
			slog.Info("Local server listening", "metrics", a.server.Address())
			return a.server.Start()
		})
	}

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-usr1:
				dumpCtx, cancel := context.WithTimeout(gctx, cliCfg.ShutdownTimeout)
				a.dump(dumpCtx)
				cancel()
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		if signalCtx.Err() != nil {
			slog.Info("Received shutdown signal")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		defer cancel()
		return a.shutdown(shutdownCtx, cliCfg.ExportOnExit)
	})

	slog.Info("debugtel started")
	if err := g.Wait(); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("debugtel shutdown complete")
	return nil
}
