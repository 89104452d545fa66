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
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/doudoumed/ecommerce-microservices/internal/circuitbreaker"
	"github.com/doudoumed/ecommerce-microservices/internal/clients"
	"github.com/doudoumed/ecommerce-microservices/internal/config"
	"github.com/doudoumed/ecommerce-microservices/internal/database"
	"github.com/doudoumed/ecommerce-microservices/internal/eventbus"
	"github.com/doudoumed/ecommerce-microservices/internal/handlers"
	"github.com/doudoumed/ecommerce-microservices/internal/middleware"
	"github.com/doudoumed/ecommerce-microservices/internal/retry"
	"github.com/doudoumed/ecommerce-microservices/internal/saga"
	"github.com/doudoumed/ecommerce-microservices/internal/store"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(".", "order-service", ":5003")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize database
	db, err := database.InitDB(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	orderStore := store.NewOrderStore(db)
	if err := orderStore.EnsureSchema(context.Background()); err != nil {
		logger.Fatal("Failed to ensure orders schema", zap.Error(err))
	}

	// Initialize OpenTelemetry
	shutdownTracing, err := middleware.InitTracing(cfg.AppName, cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// Initialize event bus
	failurePolicy, err := eventbus.ParseFailurePolicy(cfg.ConsumerFailurePolicy)
	if err != nil {
		logger.Fatal("Invalid consumer failure policy", zap.Error(err))
	}
	bus := eventbus.NewRabbitMQBus(cfg.RabbitMQURL, cfg.ExchangeName, failurePolicy, logger)
	defer bus.Close()

	// Collaborator clients and resilience
	retryPolicy := retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	customerClient := clients.NewCustomerClient(cfg.CustomerServiceURL, retryPolicy, logger)
	inventoryClient := clients.NewInventoryClient(cfg.InventoryServiceURL, retryPolicy, logger)
	paymentClient := clients.NewPaymentClient(cfg.PaymentServiceURL, logger)
	paymentBreaker := circuitbreaker.NewCircuitBreaker(cfg.BreakerMaxFailures, cfg.BreakerResetTimeout)

	orchestrator := saga.NewOrchestrator(
		customerClient,
		inventoryClient,
		paymentClient,
		orderStore,
		paymentBreaker,
		bus,
		logger,
	)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware(cfg.AppName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck(cfg.AppName))
	router.GET("/metrics", middleware.PrometheusHandler())

	orderHandler := handlers.NewOrderHandler(orchestrator, orderStore, bus, logger)
	router.POST("/api/orders", orderHandler.CreateOrder)
	router.GET("/api/orders", orderHandler.GetOrders)
	router.GET("/api/orders/:id", orderHandler.GetOrder)
	router.PUT("/api/orders/:id/status", orderHandler.UpdateOrderStatus)
	router.PUT("/api/orders/:id/payment-status", orderHandler.UpdatePaymentStatus)
	router.PUT("/api/orders/:id/shipping-status", orderHandler.UpdateShippingStatus)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Order Service started", zap.String("addr", cfg.HTTPAddr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
