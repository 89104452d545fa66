package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doudoumed/ecommerce-microservices/internal/models"
)

type ShipmentStore struct {
	db *sql.DB
}

func NewShipmentStore(db *sql.DB) *ShipmentStore {
	return &ShipmentStore{db: db}
}

func (s *ShipmentStore) EnsureSchema(ctx context.Context) error {
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS shipments (
		id SERIAL PRIMARY KEY,
		order_id INTEGER NOT NULL,
		tracking_number VARCHAR(255),
		status VARCHAR(50) NOT NULL DEFAULT 'preparing',
		carrier VARCHAR(50),
		estimated_delivery VARCHAR(50),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := s.db.ExecContext(ctx, createTableQuery); err != nil {
		return fmt.Errorf("failed to create shipments table: %w", err)
	}
	return nil
}

func (s *ShipmentStore) Create(ctx context.Context, orderID int, trackingNumber, status, carrier, estimatedDelivery string) (int, error) {
	var shipmentID int
	err := s.db.QueryRowContext(
		ctx,
		"INSERT INTO shipments (order_id, tracking_number, status, carrier, estimated_delivery) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		orderID, trackingNumber, status, carrier, estimatedDelivery,
	).Scan(&shipmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to create shipment record: %w", err)
	}
	return shipmentID, nil
}

// FindByOrderID returns nil without error when the order has no shipment yet,
// so a redelivered payment.completed event reuses the existing tracking number.
func (s *ShipmentStore) FindByOrderID(ctx context.Context, orderID int) (*models.Shipment, error) {
	var sh models.Shipment
	err := s.db.QueryRowContext(
		ctx,
		"SELECT id, order_id, tracking_number, status, carrier, estimated_delivery, created_at FROM shipments WHERE order_id = $1 ORDER BY id LIMIT 1",
		orderID,
	).Scan(&sh.ID, &sh.OrderID, &sh.TrackingNumber, &sh.Status, &sh.Carrier, &sh.EstimatedDelivery, &sh.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}
