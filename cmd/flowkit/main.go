// Package main implements the entry point for the flowkit editor service.
// Flowkit is the authoring backend for visual node graphs: it persists flow
// documents, reconciles node pins against their kind definitions, and pushes
// change notifications to connected editor clients.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/flowkit/catalog"
	"github.com/c360/flowkit/config"
	"github.com/c360/flowkit/debugger"
	"github.com/c360/flowkit/flowstore"
	"github.com/c360/flowkit/metric"
	"github.com/c360/flowkit/natsclient"
	"github.com/c360/flowkit/node"
	"github.com/c360/flowkit/service"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "flowkit"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	metricsRegistry := metric.NewRegistry()

	natsClient, err := connectNATS(ctx, cfg, logger, metricsRegistry)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = natsClient.Close(closeCtx)
	}()

	store, err := flowstore.NewStore(ctx, natsClient)
	if err != nil {
		return fmt.Errorf("create flow store: %w", err)
	}

	registry, err := loadKinds(cfg)
	if err != nil {
		return err
	}

	dbg, err := debugger.New(cfg.Debugger.SettingsPath, nil, logger)
	if err != nil {
		return fmt.Errorf("create debugger: %w", err)
	}

	svc, err := service.New(config.NewSafeConfig(cfg), registry, store,
		service.WithLogger(logger),
		service.WithMetrics(metricsRegistry),
		service.WithDebugger(dbg),
	)
	if err != nil {
		return fmt.Errorf("create editor service: %w", err)
	}

	return runWithSignalHandling(ctx, svc)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting flowkit (flow graph editor service)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// loadConfig loads configuration: defaults, then the optional config file,
// then environment overrides. The loader validates the result.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader.AddLayer(path)
	}
	return loader.Load()
}

// connectNATS creates and connects the NATS client, keeping the connection
// gauge in step with the connection state.
func connectNATS(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.Registry,
) (*natsclient.Client, error) {
	natsClient, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithLogger(logger),
		natsclient.WithClientName(appName),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
		natsclient.WithDisconnectCallback(func(error) {
			metricsRegistry.Metrics.NATSConnected.Set(0)
		}),
		natsclient.WithReconnectCallback(func() {
			metricsRegistry.Metrics.NATSConnected.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := natsClient.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	metricsRegistry.Metrics.NATSConnected.Set(1)

	return natsClient, nil
}

// loadKinds builds the node kind registry from the configured catalog
// directory. Without a catalog directory the registry starts empty and
// kinds can only arrive through future catalog reloads.
func loadKinds(cfg *config.Config) (*node.Registry, error) {
	registry := node.NewRegistry()
	if cfg.Catalogs.Dir == "" {
		slog.Warn("No catalog directory configured, starting with no node kinds")
		return registry, nil
	}

	catalogs, err := catalog.LoadDir(cfg.Catalogs.Dir)
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}

	providers := builtinProviders()
	kinds := 0
	for _, c := range catalogs {
		if err := c.Apply(registry, providers); err != nil {
			return nil, fmt.Errorf("apply catalog %s: %w", c.Name, err)
		}
		kinds += len(c.Kinds)
	}

	slog.Info("Node kind catalogs loaded",
		"catalogs", len(catalogs),
		"kinds", kinds,
		"dir", cfg.Catalogs.Dir)
	return registry, nil
}

// builtinProviders returns the context-pin providers catalogs may reference
// by name.
func builtinProviders() catalog.Providers {
	return catalog.Providers{
		"config-branches": catalog.BranchOutputs("branches"),
	}
}

// runWithSignalHandling starts the service and handles shutdown signals
func runWithSignalHandling(ctx context.Context, svc *service.Service) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := svc.Start(signalCtx); err != nil {
		return fmt.Errorf("start editor service: %w", err)
	}
	slog.Info("Flowkit started successfully (editor API ready)")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := svc.Stop(); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Flowkit shutdown complete")
	return nil
}
