package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/config"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/healthcheck"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/mailchimp"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/observer"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/pabau"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/storage"
	syncengine "gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/sync"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize Metrics conditionally
	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting Pabau Mailchimp Sync",
		zap.String("environment", cfg.Environment),
		zap.String("pabau_base_url", cfg.Pabau.BaseURL),
		zap.String("mailchimp_server_prefix", cfg.Mailchimp.ServerPrefix),
		zap.Duration("sync_interval", cfg.Sync.Interval),
	)

	// Initialize repository
	postgresRepo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	// Initialize upstream adapters
	pabauClient := pabau.NewClient(cfg.Pabau.BaseURL, cfg.Pabau.APIKey, cfg.Pabau.PageSize)
	mailchimpClient := mailchimp.NewClient(cfg.MailchimpBaseURL(), cfg.Mailchimp.APIKey, cfg.Mailchimp.ListID)

	// Wire the reconciliation engine and its scheduler
	engine := syncengine.NewEngine(postgresRepo, pabauClient, mailchimpClient,
		cfg.Sync.PushBatchSize, cfg.Sync.PushBatchPause)
	scheduler := syncengine.NewScheduler(engine, cfg.Sync.Interval, cfg.Sync.RunOnStart)

	// Create health check server
	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.Port), logger.Log, postgresRepo.SyncLogRepo())

	// Register metrics handler if enabled BEFORE starting the server
	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.Port))
	} else {
		logger.Log.Info("Metrics endpoint disabled for environment", zap.String("environment", cfg.Environment))
	}

	healthServer.Start()

	logger.Log.Info("Health check endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.Port)),
		zap.String("status", fmt.Sprintf("http://localhost:%d/status", cfg.Server.Port)),
	)

	// Run the scheduler until a termination signal arrives
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	schedulerDone := make(chan struct{})
	utils.SafeGo(func() {
		defer close(schedulerDone)
		scheduler.Run(mainCtx)
	}, nil)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	mainCancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	select {
	case <-schedulerDone:
		logger.Log.Info("[shutdown] Scheduler stopped")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Timed out waiting for scheduler to stop")
	}

	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.Log.Error("[shutdown] Failed to stop health check server", zap.Error(err))
	} else {
		logger.Log.Info("[shutdown] Health check server stopped")
	}

	if err := postgresRepo.Close(shutdownCtx); err != nil {
		logger.Log.Error("[shutdown] Failed to close database", zap.Error(err))
	}

	logger.Log.Info("Shutdown complete")
}
