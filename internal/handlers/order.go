package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/doudoumed/ecommerce-microservices/internal/eventbus"
	"github.com/doudoumed/ecommerce-microservices/internal/models"
	"github.com/doudoumed/ecommerce-microservices/internal/saga"
	"github.com/doudoumed/ecommerce-microservices/internal/store"
)

// OrderCreator is the saga entry point; an interface so handler tests can
// stub the whole pipeline.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*saga.Result, error)
}

type OrderHandler struct {
	saga   OrderCreator
	orders *store.OrderStore
	bus    eventbus.Publisher
	logger *zap.Logger
}

func NewOrderHandler(sagaOrchestrator OrderCreator, orders *store.OrderStore, bus eventbus.Publisher, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		saga:   sagaOrchestrator,
		orders: orders,
		bus:    bus,
		logger: logger,
	}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("order-service").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Int("customer_id", req.CustomerID),
		attribute.Int("product_id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
	)

	result, err := h.saga.CreateOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		h.respondSagaError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("order.id", result.OrderID))
	h.logger.Info("Order created", zap.Int("order_id", result.OrderID), zap.String("payment_status", string(result.PaymentStatus)))
	c.JSON(http.StatusCreated, result)
}

func (h *OrderHandler) respondSagaError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, saga.ErrInsufficientStock):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Product not available in requested quantity"})
	case errors.Is(err, saga.ErrCustomerUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Customer service unavailable", "error": err.Error()})
	case errors.Is(err, saga.ErrInventoryUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Inventory service unavailable", "error": err.Error()})
	case errors.Is(err, saga.ErrPricingUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Cannot calculate price", "error": err.Error()})
	case errors.Is(err, saga.ErrReservationFailed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Cannot reserve product", "error": err.Error()})
	default:
		h.logger.Error("Failed to create order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (h *OrderHandler) GetOrders(c *gin.Context) {
	ctx, span := otel.Tracer("order-service").Start(c.Request.Context(), "GetOrders")
	defer span.End()

	orders, err := h.orders.List(ctx)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("order-service").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	span.SetAttributes(attribute.Int("order.id", orderID))

	order, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	ctx, span := otel.Tracer("order-service").Start(c.Request.Context(), "UpdateOrderStatus")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := h.orders.UpdateStatus(ctx, orderID, req.Status); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update order status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	event := models.OrderStatusUpdatedEvent{
		OrderID:    orderID,
		CustomerID: order.CustomerID,
		Status:     req.Status,
	}
	if err := h.bus.Publish(ctx, models.EventOrderStatusUpdated, event); err != nil {
		h.logger.Error("Failed to publish order.status.updated event", zap.Int("order_id", orderID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated"})
}

// UpdatePaymentStatus is the internal endpoint the payment worker calls to
// push settlement progress back onto the order row.
func (h *OrderHandler) UpdatePaymentStatus(c *gin.Context) {
	ctx, span := otel.Tracer("order-service").Start(c.Request.Context(), "UpdatePaymentStatus")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.orders.UpdatePaymentStatus(ctx, orderID, req.PaymentStatus); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update payment status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Payment status updated"})
}

// UpdateShippingStatus is the internal endpoint the shipping worker calls.
func (h *OrderHandler) UpdateShippingStatus(c *gin.Context) {
	ctx, span := otel.Tracer("order-service").Start(c.Request.Context(), "UpdateShippingStatus")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.UpdateShippingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.orders.UpdateShippingStatus(ctx, orderID, req.ShippingStatus); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to update shipping status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Shipping status updated"})
}
