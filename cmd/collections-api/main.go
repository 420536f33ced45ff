package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_storefront/internal/collections"
	"github.com/fjod/go_storefront/internal/config"
	"github.com/fjod/go_storefront/internal/dataset"
	"github.com/fjod/go_storefront/internal/logger"
	"github.com/fjod/go_storefront/internal/repository"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()
	zap.ReplaceGlobals(logg)

	creds := &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsPath,
	}

	repo, err := repository.NewPostgresRepository(creds)
	if err != nil {
		logg.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		logg.Fatal("Failed to run migrations", zap.Error(err))
	}
	logg.Info("Database migrations completed")

	data, err := dataset.Default()
	if err != nil {
		logg.Fatal("Failed to load dataset", zap.Error(err))
	}

	if cfg.SeedDataset {
		seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		inserted, err := repo.Seed(seedCtx, data.Orders)
		cancel()
		if err != nil {
			logg.Fatal("Failed to seed orders", zap.Error(err))
		}
		logg.Info("Seeded orders", zap.Int("inserted", inserted))
	}

	handler := collections.NewHandler(repo, data, logg, cfg.RequestTimeout)
	srv := &http.Server{
		Addr:         ":" + cfg.CollectionsPort,
		Handler:      collections.NewRouter(handler, cfg.Remote.APIKey, cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logg.Info("Collections API starting", zap.String("port", cfg.CollectionsPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down collections API...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logg.Error("server forced to shutdown", zap.Error(err))
	}
	logg.Info("collections API exited")
}
