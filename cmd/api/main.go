package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-assistant/internal/api"
	"github.com/dvloznov/finance-assistant/internal/app"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

func main() {
	envFile := flag.String("env-file", ".env", "Optional dotenv file; environment variables take precedence")
	flag.Parse()

	cfg, err := config.LoadFile(*envFile)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	log := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	ctx := context.Background()

	assistantApp, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize assistant")
	}

	// Start re-index workers in background
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := assistantApp.StartWorkers(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	handler := api.NewRouter(assistantApp.Service, assistantApp.JobStore, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
	}, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: assistantApp.QueryTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Cancel worker context, then stop the queue and release clients
	cancelWorker()
	if err := assistantApp.Close(); err != nil {
		log.Error().Err(err).Msg("Error releasing resources")
	}

	log.Info().Msg("Server exited")
}
