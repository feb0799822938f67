package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"blink/internal/app"
	"blink/internal/cache"
	"blink/internal/config"
	"blink/internal/handler"
	"blink/internal/hub"
	"blink/internal/journey"
	"blink/internal/livestatus"
	"blink/internal/middleware"
	"blink/internal/scanner"
	"blink/internal/seed"
	"blink/internal/storage"
	"blink/internal/store"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting blink server",
		"version", version,
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"store_driver", cfg.StoreDriver,
		"snapshot_driver", cfg.SnapshotDriver,
		"live_status_enabled", cfg.LiveStatusEnabled,
	)

	recordStore, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer recordStore.Close()

	roster, err := seed.LoadRoster(cfg.SeedRosterPath)
	if err != nil {
		logger.Error("failed to load roster", "path", cfg.SeedRosterPath, "error", err)
		os.Exit(1)
	}

	liveHub := hub.NewHub(logger)
	liveHub.SetAuthorized(cfg.LiveStatusEnabled)

	snapshots, closeSnapshots, err := openSnapshots(cfg, logger)
	if err != nil {
		logger.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}
	defer closeSnapshots()

	var (
		recorder storage.Recorder = storage.Nop{}
		indexer  *storage.ScanIndexer
	)
	if cfg.ElasticsearchEnabled {
		indexer, err = storage.NewScanIndexer(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
		if err != nil {
			logger.Error("failed to create scan indexer", "error", err)
			os.Exit(1)
		}
		recorder = indexer
	}

	publisher := livestatus.NewPublisher(liveHub, snapshots, logger)
	application := app.New(recordStore, roster, publisher, app.Options{
		Journey: journey.Options{
			TickInterval: cfg.JourneyTickInterval,
			TickStep:     cfg.JourneyTickStep,
		},
		Recorder: recorder,
	}, logger)

	sessions := scanner.NewRegistry(scanner.Options{
		MinFrameInterval: cfg.ScanMinFrameInterval,
		Threshold:        cfg.ScanConfidenceThreshold,
	}, cfg.ScanSessionTTL, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go liveHub.Run(ctx)
	go sessions.Run(ctx)
	go limiter.Run(ctx)

	if indexer != nil {
		if err := indexer.Ping(ctx); err != nil {
			logger.Warn("elasticsearch unreachable at startup", "error", err)
		}
		go indexer.Run(ctx)
	}

	var launched atomic.Bool
	if err := application.Launch(ctx); err != nil {
		logger.Error("launch failed", "error", err)
	}
	launched.Store(true)

	router := handler.NewRouter(handler.Deps{
		App:      application,
		Store:    recordStore,
		Hub:      liveHub,
		Sessions: sessions,
		Limiter:  limiter,
		Launched: &launched,
		Version:  version,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Journey runners stop before the hub so a final tick can still publish.
	application.Shutdown()
	publisher.Wait()
	cancel()

	logger.Info("shutdown complete")
}

func openStore(cfg *config.Config) (store.RecordStore, error) {
	if cfg.StoreDriver == "memory" {
		return store.NewMemory(), nil
	}
	return store.OpenSQLite(cfg.SQLitePath)
}

func openSnapshots(cfg *config.Config, logger *slog.Logger) (livestatus.SnapshotStore, func(), error) {
	switch cfg.SnapshotDriver {
	case "redis":
		s, err := cache.NewRedisSnapshotStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, closer(s, logger), nil
	case "memory":
		return cache.NewMemorySnapshotStore(), func() {}, nil
	default:
		s, err := cache.NewFileSnapshotStore(cfg.SnapshotPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

func closer(c io.Closer, logger *slog.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}
