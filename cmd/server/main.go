package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tangoverse/mneme/internal/api"
	"github.com/tangoverse/mneme/internal/buildconfig"
	"github.com/tangoverse/mneme/internal/config"
	"github.com/tangoverse/mneme/internal/store"
	"github.com/tangoverse/mneme/internal/store/inmem"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger := newLogger(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	logger.Info("starting mneme", buildconfig.Current().Fields()...)

	ctx := context.Background()

	var stores api.Stores
	switch backend := config.StoreBackend(); backend {
	case config.BackendPostgres:
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			logger.Fatal("DATABASE_URL is required for the postgres backend")
		}

		if config.RunMigrations() {
			if err := store.RunMigrations(ctx, dbURL); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
			logger.Info("migrations applied")
		}

		pool, err := store.Connect(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()
		logger.Info("connected to database")

		stores = api.PostgresStores(pool)
	default:
		logger.Warn("using in-memory store; memories are lost on restart")
		stores = api.MemoryStores(inmem.New(inmem.Config{}, logger))
	}

	app := api.NewApp(stores, logger)
	app.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr), zap.String("store", config.StoreBackend()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	app.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
