package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/doudoumed/ecommerce-microservices/internal/eventbus"
	"github.com/doudoumed/ecommerce-microservices/internal/middleware"
	"github.com/doudoumed/ecommerce-microservices/internal/models"
)

type NotificationRecorder interface {
	Create(ctx context.Context, customerID, orderID int, notificationType, message string) (int, error)
}

// NotificationWorker is the fan-in sink of the saga: it renders a message for
// every order, payment and shipment event and records it. No further publish.
type NotificationWorker struct {
	bus            eventbus.Bus
	notifications  NotificationRecorder
	reconnectDelay time.Duration
	logger         *zap.Logger
}

func NewNotificationWorker(bus eventbus.Bus, notifications NotificationRecorder, reconnectDelay time.Duration, logger *zap.Logger) *NotificationWorker {
	return &NotificationWorker{
		bus:            bus,
		notifications:  notifications,
		reconnectDelay: reconnectDelay,
		logger:         logger,
	}
}

func (w *NotificationWorker) Subscription() eventbus.Subscription {
	return eventbus.Subscription{
		Queue:    "notification_queue",
		Patterns: []string{"order.*", "payment.*", "shipment.*", "order.status.updated"},
	}
}

func (w *NotificationWorker) Run(ctx context.Context) {
	w.logger.Info("Notification worker waiting for events")
	runConsumeLoop(ctx, w.logger, w.reconnectDelay, func(ctx context.Context) error {
		return w.bus.Consume(ctx, w.Subscription(), w.HandleMessage)
	})
}

func (w *NotificationWorker) HandleMessage(ctx context.Context, env eventbus.Envelope) error {
	ctx, span := otel.Tracer("notification-worker").Start(ctx, "ProcessNotification")
	defer span.End()

	span.SetAttributes(attribute.String("event.type", env.Event))

	var customerID, orderID int
	var notificationType, message string

	switch env.Event {
	case models.EventOrderCreated:
		var event models.OrderCreatedEvent
		if err := json.Unmarshal(env.Data, &event); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to unmarshal %s event: %w", env.Event, err)
		}
		customerID, orderID = event.CustomerID, event.OrderID
		notificationType = "order_confirmation"
		message = fmt.Sprintf("Your order #%d has been created successfully. Total: $%.2f", event.OrderID, event.TotalPrice)

	case models.EventPaymentCompleted:
		var event models.PaymentCompletedEvent
		if err := json.Unmarshal(env.Data, &event); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to unmarshal %s event: %w", env.Event, err)
		}
		customerID, orderID = event.CustomerID, event.OrderID
		notificationType = "payment_confirmation"
		message = fmt.Sprintf("Payment for order #%d has been processed successfully. Amount: $%.2f", event.OrderID, event.Amount)

	case models.EventShipmentCreated:
		var event models.ShipmentCreatedEvent
		if err := json.Unmarshal(env.Data, &event); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to unmarshal %s event: %w", env.Event, err)
		}
		customerID, orderID = event.CustomerID, event.OrderID
		notificationType = "shipment_notification"
		message = fmt.Sprintf("Your order #%d has been shipped! Tracking number: %s", event.OrderID, event.TrackingNumber)

	case models.EventOrderStatusUpdated:
		var event models.OrderStatusUpdatedEvent
		if err := json.Unmarshal(env.Data, &event); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to unmarshal %s event: %w", env.Event, err)
		}
		customerID, orderID = event.CustomerID, event.OrderID
		notificationType = "status_update"
		message = fmt.Sprintf("Order #%d status updated to: %s", event.OrderID, event.Status)

	default:
		w.logger.Debug("Unknown event type", zap.String("event_type", env.Event))
		return nil
	}

	if _, err := w.notifications.Create(ctx, customerID, orderID, notificationType, message); err != nil {
		span.RecordError(err)
		return err
	}
	middleware.RecordNotificationSent(env.Event)

	w.logger.Info("Notification sent",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("type", notificationType),
		zap.Int("customer_id", customerID),
		zap.Int("order_id", orderID),
		zap.String("message", message),
	)
	return nil
}
