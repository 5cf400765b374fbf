package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/legacyxi/shopcart/cart-service/internal/cache"
	"github.com/legacyxi/shopcart/cart-service/internal/cart"
	"github.com/legacyxi/shopcart/cart-service/internal/catalog"
	"github.com/legacyxi/shopcart/cart-service/internal/config"
	"github.com/legacyxi/shopcart/cart-service/internal/health"
	carthttp "github.com/legacyxi/shopcart/cart-service/internal/http"
	"github.com/legacyxi/shopcart/cart-service/internal/poller"
	"github.com/legacyxi/shopcart/cart-service/internal/publisher"
	"github.com/legacyxi/shopcart/cart-service/internal/repository"
	"github.com/legacyxi/shopcart/cart-service/internal/service"
	"github.com/legacyxi/shopcart/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}

	log, err := logger.New(level, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up MongoDB connection
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repository.Disconnect(dctx, mongoDB); err != nil {
			log.Warn("mongo disconnect error", zap.Error(err))
		}
	}()

	repo := repository.NewMongoRepository(mongoDB)
	if err := repository.CreateIndexes(ctx, repo); err != nil {
		log.Warn("failed to create indexes", zap.Error(err))
	}
	log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.Info("redis ping succeeded", zap.String("addr", cfg.Redis.Addr))

	holder := catalog.NewHolder()
	refresher := catalog.NewRefresher(holder,
		catalog.NewHTTPSource(cfg.Catalog.BaseURL, cfg.Catalog.Timeout),
		cfg.Catalog.RefreshInterval, log.Named("catalog"))
	go refresher.Run(ctx)

	checkoutPublisher := publisher.NewCheckoutPublisher(cfg.Kafka.CheckoutTopic, cfg.Kafka.Brokers...)
	defer func() {
		if err := checkoutPublisher.Close(); err != nil {
			log.Warn("error closing checkout publisher", zap.Error(err))
		}
	}()

	carts := service.NewCartService(repo, cache.NewRedisCache(redisClient), holder, service.Options{
		Sizes:     cart.KnownSizes(cfg.Cart.Sizes...),
		Currency:  cfg.Cart.Currency,
		IdleTTL:   cfg.Cart.IdleTTL,
		Publisher: checkoutPublisher,
		Logger:    log.Named("cart"),
	})
	defer carts.Close()

	orders := poller.NewPoller(carts, log.Named("poller"), cfg.Kafka.OrderTopic, cfg.Kafka.Brokers...)
	go orders.Run(ctx)
	defer orders.Close()

	healthSrv := health.NewServer(refresher, 5*time.Second, log.Named("health"))
	go healthSrv.Watch(ctx)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	go func() {
		log.Info("gRPC health listening", zap.String("port", cfg.GRPCPort))
		if err := healthSrv.GRPC().Serve(lis); err != nil {
			log.Error("grpc serve error", zap.Error(err))
		}
	}()

	router := carthttp.NewRouter(
		carthttp.RouterConfig{
			RequestTimeout: cfg.RequestTimeout,
			JWTSecret:      []byte(cfg.Auth.JWTSecret),
		},
		carthttp.NewCartHandler(carts, cfg.RequestTimeout, log),
		carthttp.NewCheckoutHandler(carts, cfg.RequestTimeout, log),
		log,
	)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("cart service starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	log.Info("shutting down cart service...")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	healthSrv.Shutdown()

	log.Info("cart service stopped")
	return nil
}
