package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"hermes/internal/adapters/config"
	"hermes/internal/adapters/errors/noop"
	"hermes/internal/adapters/errors/sentry"
	"hermes/internal/bootstrap"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := initLogger(cfg); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Initialize metrics
	metrics.Init()
	startMetricsServer(cfg, log)

	// Build the gateway dependency container
	container, err := bootstrap.Build(cfg, errorTracker, log)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}
	defer container.Shutdown()

	if err := container.ValidateConfig(context.Background()); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	log.Infow("Configuration snapshot validated",
		"providers", container.Registry.Codes(),
	)

	// The embedding workflow engine completes the wiring with its record
	// graph adapters:
	//
	// 	gw, pool := container.AttachHost(bootstrap.HostAdapters{
	// 		Resolver:    engineResolver,
	// 		Attachments: engineAttachments,
	// 		Chatter:     engineChatter,
	// 		Writer:      engineWriter,
	// 		Reports:     engineReports,
	// 		Notifier:    engineNotifier,
	// 	})
	// 	pool.Start(ctx)
	// 	defer pool.Close()

	log.Info("System initialized successfully")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, errorTracker, log)
}

// loadConfig loads application configuration from environment
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// initLogger initializes structured logging
func initLogger(cfg *config.Config) error {
	return logger.Init(cfg.App.LogLevel, cfg.App.Env)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// startMetricsServer serves Prometheus metrics
func startMetricsServer(cfg *config.Config, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	go func() {
		log.Infof("Metrics listening on %s", cfg.App.MetricsAddr)
		if err := http.ListenAndServe(cfg.App.MetricsAddr, mux); err != nil {
			log.Errorf("Metrics server stopped: %v", err)
		}
	}()
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, errorTracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	if errorTracker != nil {
		if err := errorTracker.Flush(ctx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
