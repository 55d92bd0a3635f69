// Package main provides the queue worker entry point for the address discovery pipeline.
// It drains ingestion jobs pushed by the API server in queued mode.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/address-discovery/internal/app"
	"github.com/address-discovery/internal/config"
	"github.com/address-discovery/internal/job"
)

func main() {
	fmt.Println("Address Discovery Queue Worker")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := app.InitLogging(cfg.Logging)

	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize pipeline")
	}
	defer a.Close()

	if a.Redis == nil {
		logger.Fatal("The queue worker needs Redis; start the API server without a worker to run jobs inline")
	}

	queue := job.NewRedisQueue(a.RedisClient(), cfg.Queue.Name)
	consumer := job.NewConsumer(queue, a.Service, cfg.Queue.PollTimeout)

	if err := consumer.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start queue consumer")
	}

	if pending, err := queue.Len(ctx); err == nil {
		logger.WithField("pending", pending).Info("Queue worker started")
	}

	// Set up graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigCh
	logger.Info("Shutdown signal received, waiting for the job in progress...")

	// A cycle with comment fetching can take minutes
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := consumer.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error stopping queue consumer")
	}

	logger.Info("Worker stopped. Goodbye!")
}
