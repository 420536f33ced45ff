package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/config"
	"github.com/fjod/go_storefront/internal/dataset"
	h "github.com/fjod/go_storefront/internal/http"
	"github.com/fjod/go_storefront/internal/logger"
	"github.com/fjod/go_storefront/internal/notify"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/fjod/go_storefront/internal/poller"
	"github.com/fjod/go_storefront/internal/remote"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/session"
	"github.com/redis/go-redis/v9"
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

	ctx := context.Background()
	var wg sync.WaitGroup

	// Redis: cart cache and sessions
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logg.Fatal("Redis connection failed", zap.Error(err))
	}

	// MongoDB: durable carts
	mongoDB, err := repository.ConnectMongoDB(ctx, repository.MongoOptions{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.DBName,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
		MaxPoolSize:    uint64(cfg.Mongo.MaxPoolSize),
		MinPoolSize:    uint64(cfg.Mongo.MinPoolSize),
	})
	if err != nil {
		logg.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	cartRepo := repository.NewMongoRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		logg.Fatal("Failed to create cart indexes", zap.Error(err))
	}
	logg.Info("Connected to MongoDB", zap.String("db", cfg.Mongo.DBName))

	remoteClient := remote.New(remote.Config{
		BaseURL:          cfg.Remote.BaseURL,
		APIKey:           cfg.Remote.APIKey,
		Timeout:          cfg.Remote.Timeout,
		FailureThreshold: cfg.Remote.FailureThreshold,
		OpenTimeout:      cfg.Remote.OpenTimeout,
	}, logg)

	notes := &notify.Recorder{}
	notifiers := notify.Multi{notify.NewLogNotifier(logg), notes}
	var kafkaNotifier *notify.KafkaNotifier
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier = notify.NewKafkaNotifier(logg, cfg.KafkaBrokers...)
		notifiers = append(notifiers, kafkaNotifier)
	}

	data, err := dataset.Default()
	if err != nil {
		logg.Fatal("Failed to load dataset", zap.Error(err))
	}

	store := orders.NewStore(remoteClient, data, notifiers, logg)
	loadCtx, loadCancel := context.WithTimeout(ctx, cfg.Remote.Timeout)
	source := store.Load(loadCtx)
	loadCancel()
	logg.Info("Orders loaded", zap.String("source", string(source)), zap.Int("total", store.TotalOrders()))

	lifecycle := orders.NewLifecycle(store, remoteClient, notifiers, logg)
	carts := cart.NewService(cartRepo, cache.NewRedisCache(redisClient), remoteClient, logg)
	sessions := session.NewService(remoteClient, cache.NewRedisSessionStore(redisClient), cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, logg)
	products := catalog.NewService(remoteClient, logg)

	// Clear carts once checkout completes
	var checkoutPoller *poller.Poller
	pollerCtx, pollerCancel := context.WithCancel(ctx)
	if len(cfg.KafkaBrokers) > 0 {
		checkoutPoller = poller.NewPoller(carts, logg, cfg.KafkaBrokers...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			checkoutPoller.Run(pollerCtx)
		}()
	}

	router := h.NewRouter(h.Handlers{
		Cart:    h.NewCartHandler(carts, cfg.RequestTimeout),
		Orders:  h.NewOrdersHandler(store, lifecycle, notes, logg, cfg.RequestTimeout),
		Auth:    h.NewAuthHandler(sessions, cfg.RequestTimeout),
		Catalog: h.NewCatalogHandler(products, cfg.RequestTimeout),
	}, sessions, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logg.Info("Storefront starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down storefront...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server forced to shutdown", zap.Error(err))
	}
	pollerCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		logg.Info("Poller stopped cleanly")
	case <-shutdownCtx.Done():
		logg.Warn("Poller didn't stop in time")
	}

	if checkoutPoller != nil {
		checkoutPoller.Close()
	}
	if kafkaNotifier != nil {
		if err := kafkaNotifier.Close(); err != nil {
			logg.Warn("close notification writer", zap.Error(err))
		}
	}
	if err := repository.DisconnectMongoDB(shutdownCtx, mongoDB); err != nil {
		logg.Warn("disconnect MongoDB", zap.Error(err))
	}
	logg.Info("storefront exited")
}
