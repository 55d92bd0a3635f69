// Package main provides the API server entry point for the address discovery pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/address-discovery/internal/api"
	"github.com/address-discovery/internal/app"
	"github.com/address-discovery/internal/config"
	"github.com/address-discovery/internal/job"
	"github.com/address-discovery/internal/worker"
)

func main() {
	fmt.Println("Address Discovery API Server")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize structured logging
	logger := app.InitLogging(cfg.Logging)
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize pipeline")
	}
	defer a.Close()

	// Queue mode needs Redis and QUEUE_ENABLED; otherwise every request runs inline
	queueClient := a.RedisClient()
	if !cfg.Queue.Enabled {
		queueClient = nil
	}
	dispatcher := job.NewDispatcher(ctx, queueClient, cfg.Queue.Name, a.Service)
	logger.WithField("mode", dispatcher.Mode()).Info("Job dispatcher ready")

	scheduler := worker.NewScheduler(cfg.Scheduler, a.Service, a.Stores.Cursors)
	if cfg.Scheduler.AutoStart {
		scheduler.Start(ctx)
	}

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      10 * time.Minute, // run-now walks every channel synchronously
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, a.Service, dispatcher, scheduler)
	server.AddHealthCheck("postgres", a.Postgres.Ping)
	if a.Redis != nil {
		server.AddHealthCheck("redis", a.Redis.Ping)
	}
	if a.ClickHouse != nil {
		server.AddHealthCheck("clickhouse", a.ClickHouse.Ping)
	}

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host":      cfg.Server.Host,
		"port":      cfg.Server.Port,
		"channels":  cfg.Scheduler.Channels,
		"autoStart": cfg.Scheduler.AutoStart,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Scheduler did not stop cleanly")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
