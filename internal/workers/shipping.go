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

type ShipmentRecorder interface {
	FindByOrderID(ctx context.Context, orderID int) (*models.Shipment, error)
	Create(ctx context.Context, orderID int, trackingNumber, status, carrier, estimatedDelivery string) (int, error)
}

// ShippingWorker creates shipments once payments settle. It consumes
// payment.completed, records a shipment with a generated tracking number,
// pushes shipping progress back to the order and chains shipment.created.
type ShippingWorker struct {
	bus            eventbus.Bus
	shipments      ShipmentRecorder
	orders         OrderStatusUpdater
	reconnectDelay time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

func NewShippingWorker(bus eventbus.Bus, shipments ShipmentRecorder, orders OrderStatusUpdater, reconnectDelay time.Duration, logger *zap.Logger) *ShippingWorker {
	return &ShippingWorker{
		bus:            bus,
		shipments:      shipments,
		orders:         orders,
		reconnectDelay: reconnectDelay,
		logger:         logger,
		now:            time.Now,
	}
}

func (w *ShippingWorker) Subscription() eventbus.Subscription {
	return eventbus.Subscription{
		Queue:    "shipping_queue",
		Patterns: []string{models.EventPaymentCompleted},
	}
}

func (w *ShippingWorker) Run(ctx context.Context) {
	w.logger.Info("Shipping worker waiting for payment events")
	runConsumeLoop(ctx, w.logger, w.reconnectDelay, func(ctx context.Context) error {
		return w.bus.Consume(ctx, w.Subscription(), w.HandleMessage)
	})
}

func (w *ShippingWorker) HandleMessage(ctx context.Context, env eventbus.Envelope) error {
	if env.Event != models.EventPaymentCompleted {
		return nil
	}

	ctx, span := otel.Tracer("shipping-worker").Start(ctx, "ProcessShipment")
	defer span.End()

	var event models.PaymentCompletedEvent
	if err := json.Unmarshal(env.Data, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to unmarshal payment.completed event: %w", err)
	}

	span.SetAttributes(attribute.Int("order.id", event.OrderID))
	traceID := middleware.GetTraceID(ctx)

	w.logger.Info("Processing shipment for order",
		zap.String("trace_id", traceID),
		zap.Int("order_id", event.OrderID),
	)

	// At-least-once delivery: a duplicate payment.completed must not mint a
	// second tracking number for the same order.
	existing, err := w.shipments.FindByOrderID(ctx, event.OrderID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to look up shipment for order %d: %w", event.OrderID, err)
	}

	var shipmentID int
	var trackingNumber string
	if existing != nil {
		w.logger.Info("Shipment already created, skipping duplicate",
			zap.String("trace_id", traceID),
			zap.Int("order_id", event.OrderID),
			zap.String("tracking_number", existing.TrackingNumber),
		)
		shipmentID = existing.ID
		trackingNumber = existing.TrackingNumber
	} else {
		trackingNumber = fmt.Sprintf("TRACK-%d-%d", event.OrderID, w.now().Unix())
		estimatedDelivery := w.now().AddDate(0, 0, 5).Format("2006-01-02")

		shipmentID, err = w.shipments.Create(ctx, event.OrderID, trackingNumber, string(models.ShippingStatusShipped), "DHL", estimatedDelivery)
		if err != nil {
			span.RecordError(err)
			return err
		}
		middleware.RecordShipmentCreated()

		if err := w.orders.UpdateShippingStatus(ctx, event.OrderID, models.ShippingStatusShipped); err != nil {
			w.logger.Error("Failed to update order shipping status",
				zap.String("trace_id", traceID),
				zap.Int("order_id", event.OrderID),
				zap.Error(err),
			)
		}
	}

	created := models.ShipmentCreatedEvent{
		ShipmentID:     shipmentID,
		OrderID:        event.OrderID,
		TrackingNumber: trackingNumber,
		CustomerID:     event.CustomerID,
	}
	if err := w.bus.Publish(ctx, models.EventShipmentCreated, created); err != nil {
		span.RecordError(err)
		return err
	}

	w.logger.Info("Shipment created",
		zap.String("trace_id", traceID),
		zap.Int("order_id", event.OrderID),
		zap.String("tracking_number", trackingNumber),
	)
	return nil
}
