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

	producthttp "github.com/legacyxi/shopcart/product-service/internal/http"
	repository "github.com/legacyxi/shopcart/product-service/internal/repository"
	"github.com/legacyxi/shopcart/pkg/logger"
	"go.uber.org/zap"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	zl, err := logger.New(getEnv("LOG_LEVEL", "info"), getEnv("LOG_DEVELOPMENT", "") == "true")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck
	zap.ReplaceGlobals(zl)

	// Use environment variables with sensible defaults
	dbPath := getEnv("DB_PATH", "./internal/repository/products.db")
	migrationsPath := getEnv("MIGRATIONS_PATH", "./internal/repository/migrations")

	repo, err := repository.NewRepository(dbPath)
	if err != nil {
		zl.Fatal("failed to open repository", zap.Error(err))
	}
	defer repo.Close()

	// Run migrations
	if err := repo.RunMigrations(migrationsPath); err != nil {
		zl.Fatal("failed to run migrations", zap.Error(err))
	}
	zl.Info("migrations completed successfully")

	port := getEnv("HTTP_PORT", "4000")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      producthttp.NewRouter(producthttp.NewProductHandler(repo, 5*time.Second, zl)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("product service listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}
	zl.Info("product service stopped")
}
