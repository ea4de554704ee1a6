package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"futsal/cmd/consumers/jobs"
	"futsal/internal/config"
	"futsal/internal/consumers"
	"futsal/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Get().Info("Starting consumers service...")

	cfg.NATS.ClientID = "futsal-consumers"

	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweep := jobs.NewIntentExpirationJob(consumerService.Reservations(), cfg.Sweep.IntentTTL, cfg.Sweep.Interval, cfg.Sweep.BatchSize)
	sweep.Start(ctx)

	logger.Get().Info("Consumers service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down consumers service...")

	cancel()
	sweep.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		logger.Get().Error("Error during shutdown", "error", err)
	}

	logger.Get().Info("Consumers service stopped")
}
