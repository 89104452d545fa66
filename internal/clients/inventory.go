package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/doudoumed/ecommerce-microservices/internal/retry"
)

// ErrReservationDenied means the inventory collaborator refused the decrement,
// typically because a concurrent order took the remaining stock.
var ErrReservationDenied = errors.New("inventory reservation denied")

type Product struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

type Availability struct {
	Available       bool `json:"available"`
	CurrentQuantity int  `json:"current_quantity"`
}

type InventoryClient struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	logger     *zap.Logger
}

func NewInventoryClient(baseURL string, policy retry.Policy, logger *zap.Logger) *InventoryClient {
	return &InventoryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 3 * time.Second},
		policy:     policy,
		logger:     logger,
	}
}

func (c *InventoryClient) CheckAvailability(ctx context.Context, productID, quantity int) (*Availability, error) {
	url := c.baseURL + "/api/products/check-availability"
	body := map[string]int{"product_id": productID, "quantity": quantity}

	var result Availability
	err := retry.Do(ctx, c.policy, IsTransient, func() error {
		return doJSON(ctx, c.httpClient, http.MethodPost, url, body, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *InventoryClient) GetProduct(ctx context.Context, productID int) (*Product, error) {
	url := fmt.Sprintf("%s/api/products/%d", c.baseURL, productID)

	var product Product
	err := retry.Do(ctx, c.policy, IsTransient, func() error {
		return doJSON(ctx, c.httpClient, http.MethodGet, url, nil, &product)
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Reserve decrements available stock at the collaborator. The decrement is
// atomic on the inventory side; there is no corresponding release call, so a
// saga failure after this point leaks the reservation.
func (c *InventoryClient) Reserve(ctx context.Context, productID, quantity int) error {
	url := c.baseURL + "/api/products/reserve"
	body := map[string]int{"product_id": productID, "quantity": quantity}

	var result struct {
		Success     bool `json:"success"`
		NewQuantity int  `json:"new_quantity"`
	}
	err := retry.Do(ctx, c.policy, IsTransient, func() error {
		return doJSON(ctx, c.httpClient, http.MethodPost, url, body, &result)
	})
	if err != nil {
		return err
	}
	if !result.Success {
		return ErrReservationDenied
	}
	return nil
}
