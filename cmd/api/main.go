// cmd/api/main.go

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"trendcraft/internal/app"
	"trendcraft/internal/config"
	"trendcraft/internal/logging"
	"trendcraft/internal/server"
	"trendcraft/internal/service/listening"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Environment == "development",
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize dependencies
	application, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", logging.Error(err))
		os.Exit(1)
	}
	defer application.Close()

	// Scheduled discovery is opt-in
	var scheduler *listening.Scheduler
	if cfg.Discovery.Schedule != "" {
		scheduler, err = listening.NewScheduler(application.Detector, listening.SchedulerConfig{
			Spec:    cfg.Discovery.Schedule,
			Targets: cfg.Discovery.Categories,
		}, logger)
		if err != nil {
			logger.Error("Failed to create discovery scheduler", logging.Error(err))
			os.Exit(1)
		}
		scheduler.Start()
	}

	// Initialize HTTP server
	httpServer := server.NewServer(cfg.Server, server.Dependencies{
		Discoverer:  application.Detector,
		Catalog:     application.Catalog,
		Bus:         application.Bus,
		EventsTopic: cfg.NATS.EventsTopic,
		Gatherer:    application.Registry,
		Logger:      logger,
	})

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server",
			logging.String("host", cfg.Server.Host),
			logging.Int("port", cfg.Server.Port),
			logging.String("store", cfg.Store.Driver),
			logging.String("llm", cfg.LLM.Provider),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", logging.Error(err))
			shutdown <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	logger.Info("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", logging.Error(err))
	}

	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("Discovery scheduler shutdown error", logging.Error(err))
		}
	}

	logger.Info("Shutdown complete")
}
