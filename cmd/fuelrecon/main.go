// Fuelrecon - Fuel invoice reconciliation for fleet operators.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/opensource-finance/fuelrecon/internal/api"
	"github.com/opensource-finance/fuelrecon/internal/bus"
	"github.com/opensource-finance/fuelrecon/internal/cache"
	"github.com/opensource-finance/fuelrecon/internal/config"
	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/extract"
	"github.com/opensource-finance/fuelrecon/internal/imports"
	"github.com/opensource-finance/fuelrecon/internal/matching"
	"github.com/opensource-finance/fuelrecon/internal/repository"
	"github.com/opensource-finance/fuelrecon/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fuelrecon: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	opts := &slog.HandlerOptions{Level: config.LogLevel(cfg)}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("starting fuelrecon",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"async_worker", cfg.Worker.Enabled,
	)

	if cfg.Tracing.Enabled {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	extractor, err := extract.NewExtractor(logger)
	if err != nil {
		slog.Error("failed to initialize extractor", "error", err)
		os.Exit(1)
	}

	if err := cfg.Matching.Defaults.CheckWeights(); err != nil {
		slog.Warn("default matching weights", "error", err)
	}
	matcher := matching.NewMatcher(repo,
		matching.WithWorkers(cfg.Matching.Workers),
		matching.WithResolutionCache(cacheImpl, cfg.Matching.ResolutionTTL),
		matching.WithLogger(logger),
	)

	svc := imports.NewService(repo, extractor, matcher,
		imports.WithEventBus(busImpl),
		imports.WithDefaults(cfg.Matching.Defaults),
		imports.WithLogger(logger),
	)
	slog.Info("import service initialized",
		"match_workers", cfg.Matching.Workers,
		"auto_match_threshold", cfg.Matching.Defaults.AutoMatchThreshold,
	)

	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(busImpl, svc, logger)
		workerCfg := worker.Config{
			TenantIDs:      cfg.Worker.Tenants,
			Concurrency:    cfg.Worker.Concurrency,
			ProcessTimeout: cfg.Matching.ProcessTimeout,
		}
		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		} else {
			slog.Info("async worker started", "tenant_count", len(cfg.Worker.Tenants))
		}
	}

	srv := api.NewServer(cfg.Server, svc, repo, cacheImpl, busImpl, Version)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("fuelrecon is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version)

	select {
	case <-ctx.Done():
		slog.Info("received shutdown signal")
	case err := <-errCh:
		slog.Error("server failed", "error", err)
	}
	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop accepting uploads before draining queued imports.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	slog.Info("fuelrecon shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  FUELRECON")
	fmt.Println("  Fuel invoice reconciliation")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /templates                         - List templates")
	fmt.Println("    POST /templates                         - Create or update a template")
	fmt.Println("    POST /templates/detect                  - Detect a FatturaPA layout")
	fmt.Println("    POST /extract?templateId=               - Preview extraction")
	fmt.Println("    POST /imports?templateId=&fileName=     - Upload and match a document")
	fmt.Println("    GET  /imports                           - List imports")
	fmt.Println("    GET  /imports/{id}/lines                - List import lines")
	fmt.Println("    POST /imports/{id}/lines/{lineId}/{op}  - confirm, reject or skip a line")
	fmt.Println("    POST /imports/{id}/confirm-auto         - Confirm all auto-matched lines")
	fmt.Println("    POST /imports/{id}/finalize             - Finalize an import")
	fmt.Println("    GET  /health                            - Health check")
	fmt.Println()
}
