package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/doudoumed/ecommerce-microservices/internal/models"
)

// OrderStatusUpdater pushes fulfillment progress back to the order service.
// Both calls are best-effort at the call sites: failures are logged, never
// retried, never fatal to message handling.
type OrderStatusUpdater interface {
	UpdatePaymentStatus(ctx context.Context, orderID int, status models.PaymentStatus) error
	UpdateShippingStatus(ctx context.Context, orderID int, status models.ShippingStatus) error
}

// runConsumeLoop re-establishes a subscription after transport failures with
// a flat delay, until ctx is cancelled. Handler failures never reach here;
// the bus absorbs them per its failure policy.
func runConsumeLoop(ctx context.Context, logger *zap.Logger, delay time.Duration, consume func(context.Context) error) {
	for {
		err := consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Error("Consumer error", zap.Error(err))
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}
