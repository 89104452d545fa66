package clients

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type PaymentClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPaymentClient(baseURL string, logger *zap.Logger) *PaymentClient {
	return &PaymentClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// Process attempts a synchronous settlement. Not retried here: the caller
// runs it through the circuit breaker and falls back to the async path.
func (c *PaymentClient) Process(ctx context.Context, orderID int, totalPrice float64, customerID int) error {
	url := c.baseURL + "/api/payments/process"
	body := map[string]any{
		"order_id":    orderID,
		"total_price": totalPrice,
		"customer_id": customerID,
	}
	return doJSON(ctx, c.httpClient, http.MethodPost, url, body, nil)
}
