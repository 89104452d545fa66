package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/doudoumed/ecommerce-microservices/internal/eventbus"
	"github.com/doudoumed/ecommerce-microservices/internal/middleware"
	"github.com/doudoumed/ecommerce-microservices/internal/models"
)

type PaymentRecorder interface {
	FindByOrderID(ctx context.Context, orderID int) (*models.Payment, error)
	Create(ctx context.Context, orderID int, amount float64, status, method, transactionID string) (int, error)
}

// PaymentWorker settles payments queued by the saga's fallback path. It
// consumes order.created, records the payment, pushes the status back to the
// order and chains payment.completed.
type PaymentWorker struct {
	bus            eventbus.Bus
	payments       PaymentRecorder
	orders         OrderStatusUpdater
	reconnectDelay time.Duration
	logger         *zap.Logger
}

func NewPaymentWorker(bus eventbus.Bus, payments PaymentRecorder, orders OrderStatusUpdater, reconnectDelay time.Duration, logger *zap.Logger) *PaymentWorker {
	return &PaymentWorker{
		bus:            bus,
		payments:       payments,
		orders:         orders,
		reconnectDelay: reconnectDelay,
		logger:         logger,
	}
}

func (w *PaymentWorker) Subscription() eventbus.Subscription {
	return eventbus.Subscription{
		Queue:    "payment_queue",
		Patterns: []string{models.EventOrderCreated},
	}
}

func (w *PaymentWorker) Run(ctx context.Context) {
	w.logger.Info("Payment worker waiting for order events")
	runConsumeLoop(ctx, w.logger, w.reconnectDelay, func(ctx context.Context) error {
		return w.bus.Consume(ctx, w.Subscription(), w.HandleMessage)
	})
}

func (w *PaymentWorker) HandleMessage(ctx context.Context, env eventbus.Envelope) error {
	if env.Event != models.EventOrderCreated {
		return nil
	}

	ctx, span := otel.Tracer("payment-worker").Start(ctx, "ProcessPayment")
	defer span.End()

	var event models.OrderCreatedEvent
	if err := json.Unmarshal(env.Data, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to unmarshal order.created event: %w", err)
	}

	span.SetAttributes(
		attribute.Int("order.id", event.OrderID),
		attribute.Float64("amount", event.TotalPrice),
	)
	traceID := middleware.GetTraceID(ctx)

	w.logger.Info("Processing payment for order",
		zap.String("trace_id", traceID),
		zap.Int("order_id", event.OrderID),
		zap.Float64("amount", event.TotalPrice),
	)

	// At-least-once delivery: a redelivered event reuses the settled payment.
	existing, err := w.payments.FindByOrderID(ctx, event.OrderID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to look up payment for order %d: %w", event.OrderID, err)
	}

	paymentID := 0
	if existing != nil {
		w.logger.Info("Payment already settled, skipping duplicate",
			zap.String("trace_id", traceID),
			zap.Int("order_id", event.OrderID),
			zap.Int("payment_id", existing.ID),
		)
		paymentID = existing.ID
	} else {
		transactionID := fmt.Sprintf("TXN-%d-%s", event.OrderID, uuid.New().String())
		paymentID, err = w.payments.Create(ctx, event.OrderID, event.TotalPrice, "completed", "credit_card", transactionID)
		if err != nil {
			span.RecordError(err)
			return err
		}
		middleware.RecordPaymentProcessed("completed")

		if err := w.orders.UpdatePaymentStatus(ctx, event.OrderID, models.PaymentStatusCompleted); err != nil {
			w.logger.Error("Failed to update order payment status",
				zap.String("trace_id", traceID),
				zap.Int("order_id", event.OrderID),
				zap.Error(err),
			)
		}
	}

	completed := models.PaymentCompletedEvent{
		PaymentID:  paymentID,
		OrderID:    event.OrderID,
		Amount:     event.TotalPrice,
		CustomerID: event.CustomerID,
	}
	if err := w.bus.Publish(ctx, models.EventPaymentCompleted, completed); err != nil {
		span.RecordError(err)
		return err
	}

	w.logger.Info("Payment completed",
		zap.String("trace_id", traceID),
		zap.Int("order_id", event.OrderID),
		zap.Int("payment_id", paymentID),
	)
	return nil
}
