package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/marketplace/internal/cache"
	"github.com/fjod/marketplace/internal/config"
	h "github.com/fjod/marketplace/internal/http"
	"github.com/fjod/marketplace/internal/logging"
	"github.com/fjod/marketplace/internal/metrics"
	"github.com/fjod/marketplace/internal/publisher"
	"github.com/fjod/marketplace/internal/repository"
	"github.com/fjod/marketplace/internal/sequence"
	"github.com/fjod/marketplace/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		panic(err)
	}

	logger := logging.MustNewLogger(cfg.AppName, cfg.AppEnv)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// Set up MongoDB connection
	ctx := context.Background()
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDBName))

	repos := repository.NewRepositories(mongoDB)
	if err := repos.CreateIndexes(ctx); err != nil {
		logger.Fatal("failed to create indexes", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	logger.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	var events publisher.Publisher = publisher.NopPublisher{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		events = publisher.NewKafkaPublisher(logger, cfg.KafkaTopic, brokers...)
		logger.Info("publishing checkout events", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer events.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	ids := sequence.NewGenerator(repos.Counters)

	carts := service.NewCartService(service.Stores{
		Carts:        repos.Carts,
		Accounts:     repos.Accounts,
		Products:     repos.Products,
		Movements:    repos.Movements,
		Transactions: repos.Transactions,
		Orders:       repos.Orders,
	}, ids, cache.NewRedisCache(redisClient, cfg.CacheTTL), events, m)
	wallet := service.NewWalletService(repos.Accounts, repos.Transactions, ids, m)
	orders := service.NewOrderService(repos.Orders)
	stock := service.NewStockService(repos.Products, repos.Movements)

	router := h.NewRouter(h.RouterConfig{
		Carts:          carts,
		Orders:         orders,
		Wallet:         wallet,
		Stock:          stock,
		Logger:         logger,
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, cfg.AppName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("marketplace starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		logger.Warn("mongo disconnect failed", zap.Error(err))
	}

	logger.Info("server exited")
}
