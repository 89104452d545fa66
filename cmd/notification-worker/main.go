package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/doudoumed/ecommerce-microservices/internal/config"
	"github.com/doudoumed/ecommerce-microservices/internal/database"
	"github.com/doudoumed/ecommerce-microservices/internal/eventbus"
	"github.com/doudoumed/ecommerce-microservices/internal/handlers"
	"github.com/doudoumed/ecommerce-microservices/internal/middleware"
	"github.com/doudoumed/ecommerce-microservices/internal/store"
	"github.com/doudoumed/ecommerce-microservices/internal/workers"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(".", "notification-worker", ":5006")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := database.InitDB(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	notificationStore := store.NewNotificationStore(db)
	if err := notificationStore.EnsureSchema(context.Background()); err != nil {
		logger.Fatal("Failed to ensure notifications schema", zap.Error(err))
	}

	shutdownTracing, err := middleware.InitTracing(cfg.AppName, cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	failurePolicy, err := eventbus.ParseFailurePolicy(cfg.ConsumerFailurePolicy)
	if err != nil {
		logger.Fatal("Invalid consumer failure policy", zap.Error(err))
	}
	bus := eventbus.NewRabbitMQBus(cfg.RabbitMQURL, cfg.ExchangeName, failurePolicy, logger)
	defer bus.Close()

	worker := workers.NewNotificationWorker(bus, notificationStore, cfg.WorkerReconnectDelay, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())
	router.GET("/health", handlers.HealthCheck(cfg.AppName))
	router.GET("/metrics", middleware.PrometheusHandler())

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	logger.Info("Notification worker started", zap.String("addr", cfg.HTTPAddr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Worker exited")
}
