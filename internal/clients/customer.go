package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/doudoumed/ecommerce-microservices/internal/retry"
)

type CustomerClient struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	logger     *zap.Logger
}

func NewCustomerClient(baseURL string, policy retry.Policy, logger *zap.Logger) *CustomerClient {
	return &CustomerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 3 * time.Second},
		policy:     policy,
		logger:     logger,
	}
}

// Verify confirms the customer exists. Transient failures are retried with
// backoff; a 404 surfaces immediately.
func (c *CustomerClient) Verify(ctx context.Context, customerID int) error {
	url := fmt.Sprintf("%s/api/customers/%d", c.baseURL, customerID)
	return retry.Do(ctx, c.policy, IsTransient, func() error {
		return doJSON(ctx, c.httpClient, http.MethodGet, url, nil, nil)
	})
}
