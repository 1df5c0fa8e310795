// Command api is the Ember check-in server.
//
// Usage:
//
//	ember-api
//	API_PORT=8080 STORE_DRIVER=postgres DATABASE_URL=postgres://... ember-api

// @title Ember API
// @version 1.0.0
// @description Daily health-snapshot baselines, anomaly check-ins and reply handling.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @contact.name Ember
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/ember/internal/api"
	"github.com/albapepper/ember/internal/bootstrap"
	"github.com/albapepper/ember/internal/config"
	"github.com/albapepper/ember/internal/listener"
	"github.com/albapepper/ember/internal/maintenance"
	"github.com/albapepper/ember/internal/metrics"

	_ "github.com/albapepper/ember/docs" // swagger docs
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Wire store, generator, transport and service
	rec := metrics.New()
	logger.Info("Opening state store...", "driver", cfg.StoreDriver)
	rt, err := bootstrap.New(ctx, cfg, nil, rec, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer rt.Close()
	logger.Info("Check-in service ready",
		"store", cfg.StoreDriver,
		"transport", cfg.Transport,
		"llm_model", cfg.LLMModel,
		"timezone", cfg.Timezone.String(),
		"min_samples", cfg.MinSamples)

	// Keep the cache coherent with commits from other replicas
	if cfg.StoreDriver == config.StorePostgres {
		go listener.Start(ctx, cfg.DatabaseURL, rt.Repo, logger)
	}

	// Start maintenance tickers (idle cache eviction, store probe)
	mcfg := maintenance.DefaultConfig()
	mcfg.IdleAfter = cfg.CacheIdleAfter
	go maintenance.Start(ctx, rt.Repo, rec, mcfg, logger)

	// Create router
	router := api.NewRouter(rt.Service, rt.Repo, rec, cfg, logger)

	// Create HTTP server. WriteTimeout covers one generation plus one send.
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.GenerateTimeout + cfg.SendTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Ember API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout. In-flight mutations finish and commit
	// before the store is closed.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
