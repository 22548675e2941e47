package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/grachmannico95/wallet-webhook/internal/app"
	"github.com/grachmannico95/wallet-webhook/internal/config"
	"github.com/grachmannico95/wallet-webhook/internal/handler"
	"github.com/grachmannico95/wallet-webhook/internal/scheduler"
	"github.com/grachmannico95/wallet-webhook/internal/server"
	"github.com/grachmannico95/wallet-webhook/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Logging.Level)
	defer log.Sync()

	ctx := context.Background()
	log.Info(ctx, "Starting application")

	if err := cfg.Validate(); err != nil {
		log.Fatal(ctx, "Invalid configuration",
			"error", err,
		)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal(ctx, "Failed to initialize application",
			"error", err,
		)
	}

	err = a.Start(ctx)
	if err != nil {
		log.Fatal(ctx, "Failed to start event bus",
			"error", err,
		)
	}

	var retention *scheduler.Scheduler
	if cfg.Retention.Enabled {
		retention, err = scheduler.New(a.Service, cfg.Retention.CronSpec, cfg.Retention.MaxAge, cfg.DisplayLocation(), log)
		if err != nil {
			log.Fatal(ctx, "Failed to create retention scheduler",
				"error", err,
			)
		}
		retention.Start()
	}

	transactionHandler := handler.NewTransactionHandler(a.Service, log)
	healthHandler := handler.NewHealthHandler(a.Store)
	if a.Bus != nil {
		healthHandler.WithQueue(a.Bus)
	}
	log.Info(ctx, "Handlers initialized")

	srv := server.New(cfg, log, transactionHandler, healthHandler)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal(ctx, "Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	log.Info(ctx, "Application started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop intake first, then background work, then release storage.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "HTTP server shutdown error",
			"error", err,
		)
	}

	if retention != nil {
		if err := retention.Stop(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "Retention scheduler shutdown error",
				"error", err,
			)
		}
	}

	if err := a.Close(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "Application shutdown error",
			"error", err,
		)
	}

	log.Info(ctx, "Application stopped gracefully")
}
