package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/budget-bot/internal/api"
	"github.com/dvloznov/budget-bot/internal/api/handlers"
	"github.com/dvloznov/budget-bot/internal/app"
	"github.com/dvloznov/budget-bot/internal/config"
	"github.com/dvloznov/budget-bot/internal/jobs/inmemory"
	"github.com/dvloznov/budget-bot/internal/logger"
	"github.com/dvloznov/budget-bot/internal/worker"
)

func main() {
	cfg, err := config.Load("api", os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New(cfg.LogLevel)

	ctx := context.Background()

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	// In production this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueSize, cfg.Workers, jobStore, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	router := worker.NewRouter(services.PipelineDeps(), services.Matcher, log)
	if err := jobQueue.Start(workerCtx, router.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	deps := api.Deps{
		Ledger:    services.Ledger,
		Memory:    services.Matcher,
		Publisher: jobQueue,
		JobStore:  jobStore,
		APIKey:    cfg.APIKey,
		Log:       log,
	}
	// a nil *gcsuploader.Client must not become a non-nil interface
	if services.Storage != nil {
		deps.Uploader = handlers.ReceiptUploader(services.Storage)
	}
	if cfg.APIKey == "" {
		log.Warn().Msg("No API key configured - the API is unauthenticated")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewHandler(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
