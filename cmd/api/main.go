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

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/infinity-9427/shop-microservices/orders/internal/clients"
	"github.com/infinity-9427/shop-microservices/orders/internal/config"
	"github.com/infinity-9427/shop-microservices/orders/internal/handlers"
	"github.com/infinity-9427/shop-microservices/orders/internal/logging"
	"github.com/infinity-9427/shop-microservices/orders/internal/metrics"
	"github.com/infinity-9427/shop-microservices/orders/internal/middleware"
	"github.com/infinity-9427/shop-microservices/orders/internal/repository"
	"github.com/infinity-9427/shop-microservices/orders/internal/service"
	"github.com/infinity-9427/shop-microservices/orders/internal/worker"
)

func main() {
	logger := logging.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		logger.Error("Failed to create database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := dbPool.Ping(ctx); err != nil {
		cancel()
		logger.Error("Failed to ping database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cancel()
	defer dbPool.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("Failed to parse REDIS_URL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	} else {
		logger.Warn("REDIS_URL not set, rate limiting disabled")
	}

	ordersRepo := repository.NewOrdersRepository(dbPool)
	productsRepo := repository.NewProductsRepository(dbPool)
	outboxRepo := repository.NewOutboxRepository(dbPool)
	idempotencyRepo := repository.NewIdempotencyRepository(dbPool)

	paymentsClient := clients.NewHTTPPaymentsClient(cfg.PaymentProviderURL, cfg.PaymentWebhookSecret, cfg.HTTPTimeout, logger)

	ordersService := service.NewOrdersService(dbPool, ordersRepo, productsRepo, outboxRepo, idempotencyRepo, logger)
	paymentsService := service.NewPaymentsService(dbPool, ordersRepo, productsRepo, logger)
	productsService := service.NewProductsService(productsRepo, logger)

	limiter := middleware.NewRateLimiter(redisClient, cfg.RateLimitOrdersPerMinute, logger)

	ordersHandler := handlers.NewOrdersHandler(ordersService, limiter, logger)
	paymentsHandler := handlers.NewPaymentsHandler(paymentsService, cfg.FakePaymentEnabled, logger)
	productsHandler := handlers.NewProductsHandler(productsService, logger)
	adminHandler := handlers.NewAdminHandler(productsService, logger)
	healthHandler := handlers.NewHealthHandler(dbPool, redisClient, outboxRepo, logger)

	outboxWorker := worker.NewOutboxWorker(dbPool, outboxRepo, ordersRepo, paymentsClient, worker.Config{
		Interval:               cfg.OutboxWorkerInterval,
		BatchLimit:             cfg.OutboxBatchLimit,
		MaxAttempts:            cfg.OutboxMaxAttempts,
		RetryBaseDelay:         cfg.OutboxRetryBaseDelay,
		FakePaymentEnabled:     cfg.FakePaymentEnabled,
		FakePaymentSuccessRate: cfg.FakePaymentSuccessRate,
	}, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(metrics.Middleware())
	router.Use(logging.LoggingMiddleware(logger))

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", metrics.Handler())

	router.POST("/orders", ordersHandler.CreateOrder)
	router.GET("/orders/:id", ordersHandler.GetOrder)
	router.POST("/orders/:id/cancel", ordersHandler.CancelOrder)

	router.POST("/payments/callback", middleware.VerifySignature(cfg.PaymentWebhookSecret, logger), paymentsHandler.Callback)
	router.POST("/_fake_payments", paymentsHandler.FakePayment)

	router.GET("/products", productsHandler.ListProducts)
	router.GET("/products/:id", productsHandler.GetProduct)

	admin := router.Group("/admin", middleware.AdminAuth(cfg.AdminSecret))
	admin.POST("/products", adminHandler.CreateProduct)
	admin.PATCH("/products/:id", adminHandler.UpdateProduct)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	outboxWorker.Start()

	go func() {
		logger.Info("Orders API listening", slog.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	outboxWorker.Stop()
}
