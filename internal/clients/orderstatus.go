package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/doudoumed/ecommerce-microservices/internal/models"
)

// OrderStatusClient pushes worker-side status changes back to the order
// service. Callers treat both updates as best-effort.
type OrderStatusClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewOrderStatusClient(baseURL string, logger *zap.Logger) *OrderStatusClient {
	return &OrderStatusClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

func (c *OrderStatusClient) UpdatePaymentStatus(ctx context.Context, orderID int, status models.PaymentStatus) error {
	url := fmt.Sprintf("%s/api/orders/%d/payment-status", c.baseURL, orderID)
	body := map[string]models.PaymentStatus{"payment_status": status}
	return doJSON(ctx, c.httpClient, http.MethodPut, url, body, nil)
}

func (c *OrderStatusClient) UpdateShippingStatus(ctx context.Context, orderID int, status models.ShippingStatus) error {
	url := fmt.Sprintf("%s/api/orders/%d/shipping-status", c.baseURL, orderID)
	body := map[string]models.ShippingStatus{"shipping_status": status}
	return doJSON(ctx, c.httpClient, http.MethodPut, url, body, nil)
}
