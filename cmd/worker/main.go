package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/budget-bot/internal/app"
	"github.com/dvloznov/budget-bot/internal/config"
	"github.com/dvloznov/budget-bot/internal/jobs"
	"github.com/dvloznov/budget-bot/internal/jobs/inmemory"
	"github.com/dvloznov/budget-bot/internal/logger"
	"github.com/dvloznov/budget-bot/internal/worker"
)

func main() {
	cfg, err := config.Load("worker", os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	// In production this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueSize, cfg.Workers, jobStore, log)

	log.Info().Dur("cleanup_interval", cfg.CleanupInterval).Msg("Starting worker service")

	router := worker.NewRouter(services.PipelineDeps(), services.Matcher, log)
	if err := jobQueue.Start(ctx, router.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	// clean once at startup, then on the schedule
	if err := jobQueue.Publish(ctx, jobs.NewCleanupMemoryJob("")); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue initial cleanup")
	}
	go worker.ScheduleCleanup(ctx, jobQueue, cfg.CleanupInterval, log)

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	log.Info().Msg("Worker service exited")
}
