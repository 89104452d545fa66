package saga

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/doudoumed/ecommerce-microservices/internal/circuitbreaker"
	"github.com/doudoumed/ecommerce-microservices/internal/clients"
	"github.com/doudoumed/ecommerce-microservices/internal/eventbus"
	"github.com/doudoumed/ecommerce-microservices/internal/middleware"
	"github.com/doudoumed/ecommerce-microservices/internal/models"
)

type CustomerVerifier interface {
	Verify(ctx context.Context, customerID int) error
}

type Inventory interface {
	CheckAvailability(ctx context.Context, productID, quantity int) (*clients.Availability, error)
	GetProduct(ctx context.Context, productID int) (*clients.Product, error)
	Reserve(ctx context.Context, productID, quantity int) error
}

type PaymentProcessor interface {
	Process(ctx context.Context, orderID int, totalPrice float64, customerID int) error
}

type OrderWriter interface {
	Create(ctx context.Context, customerID, productID, quantity int, totalPrice float64) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error
}

type Breaker interface {
	Execute(ctx context.Context, fn func() error) error
}

// Result is what a completed saga run reports back to the caller. Message
// distinguishes the synchronous payment path from the async fallback.
type Result struct {
	OrderID       int                  `json:"order_id"`
	TotalPrice    float64              `json:"total_price"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Message       string               `json:"message"`
}

// Orchestrator drives order creation across the customer, inventory and
// payment collaborators. Steps run strictly in sequence; the first failure
// short-circuits the run. Only the payment step has a fallback.
type Orchestrator struct {
	customers CustomerVerifier
	inventory Inventory
	payments  PaymentProcessor
	orders    OrderWriter
	breaker   Breaker
	bus       eventbus.Publisher
	logger    *zap.Logger
}

func NewOrchestrator(
	customers CustomerVerifier,
	inventory Inventory,
	payments PaymentProcessor,
	orders OrderWriter,
	breaker Breaker,
	bus eventbus.Publisher,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		customers: customers,
		inventory: inventory,
		payments:  payments,
		orders:    orders,
		breaker:   breaker,
		bus:       bus,
		logger:    logger,
	}
}

func (o *Orchestrator) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*Result, error) {
	ctx, span := otel.Tracer("order-service").Start(ctx, "CreateOrderSaga")
	defer span.End()

	span.SetAttributes(
		attribute.Int("customer_id", req.CustomerID),
		attribute.Int("product_id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
	)

	// Step 1: Verify customer exists
	if err := o.customers.Verify(ctx, req.CustomerID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrCustomerUnavailable, err)
	}

	// Step 2: Check product availability
	availability, err := o.inventory.CheckAvailability(ctx, req.ProductID, req.Quantity)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	if !availability.Available {
		span.SetAttributes(attribute.Bool("available", false))
		return nil, ErrInsufficientStock
	}

	// Step 3: Get product price
	product, err := o.inventory.GetProduct(ctx, req.ProductID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}
	totalPrice := product.Price * float64(req.Quantity)

	// Step 4: Reserve product. Not transactionally linked to the order row
	// below: a failure past this point leaks the reservation.
	if err := o.inventory.Reserve(ctx, req.ProductID, req.Quantity); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrReservationFailed, err)
	}

	// Step 5: Create order row
	order, err := o.orders.Create(ctx, req.CustomerID, req.ProductID, req.Quantity, totalPrice)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("order.id", order.ID))

	// Step 6: Synchronous payment through the circuit breaker
	paymentErr := o.breaker.Execute(ctx, func() error {
		return o.payments.Process(ctx, order.ID, totalPrice, req.CustomerID)
	})

	if paymentErr == nil {
		if err := o.orders.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusCompleted); err != nil {
			o.logger.Error("Failed to update order payment status", zap.Int("order_id", order.ID), zap.Error(err))
		}
		middleware.RecordOrderCreated("sync")
		o.logger.Info("Order created, payment processed synchronously", zap.Int("order_id", order.ID))
		return &Result{
			OrderID:       order.ID,
			TotalPrice:    totalPrice,
			PaymentStatus: models.PaymentStatusCompleted,
			Message:       "Order created and payment processed successfully.",
		}, nil
	}

	// Step 7: Fallback - queue the payment for async processing
	if errors.Is(paymentErr, circuitbreaker.ErrCircuitOpen) {
		o.logger.Warn("Payment circuit open, falling back to async processing", zap.Int("order_id", order.ID))
	} else {
		o.logger.Warn("Payment call failed, falling back to async processing",
			zap.Int("order_id", order.ID), zap.Error(paymentErr))
	}

	event := models.OrderCreatedEvent{
		OrderID:    order.ID,
		CustomerID: req.CustomerID,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		TotalPrice: totalPrice,
	}
	if err := o.bus.Publish(ctx, models.EventOrderCreated, event); err != nil {
		// The order row exists either way; losing the event is logged, not fatal.
		o.logger.Error("Failed to publish order.created event", zap.Int("order_id", order.ID), zap.Error(err))
	}

	middleware.RecordOrderCreated("fallback")
	return &Result{
		OrderID:       order.ID,
		TotalPrice:    totalPrice,
		PaymentStatus: models.PaymentStatusPending,
		Message:       fmt.Sprintf("Order created. Payment processing queued (Fallback). Order ID: %d", order.ID),
	}, nil
}
