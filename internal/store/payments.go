package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doudoumed/ecommerce-microservices/internal/models"
)

type PaymentStore struct {
	db *sql.DB
}

func NewPaymentStore(db *sql.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

func (s *PaymentStore) EnsureSchema(ctx context.Context) error {
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS payments (
		id SERIAL PRIMARY KEY,
		order_id INTEGER NOT NULL,
		amount DECIMAL(10, 2) NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'pending',
		payment_method VARCHAR(50),
		transaction_id VARCHAR(255),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := s.db.ExecContext(ctx, createTableQuery); err != nil {
		return fmt.Errorf("failed to create payments table: %w", err)
	}
	return nil
}

func (s *PaymentStore) Create(ctx context.Context, orderID int, amount float64, status, method, transactionID string) (int, error) {
	var paymentID int
	err := s.db.QueryRowContext(
		ctx,
		"INSERT INTO payments (order_id, amount, status, payment_method, transaction_id) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		orderID, amount, status, method, transactionID,
	).Scan(&paymentID)
	if err != nil {
		return 0, fmt.Errorf("failed to create payment record: %w", err)
	}
	return paymentID, nil
}

// FindByOrderID returns nil without error when no payment exists for the
// order. Redelivered order.created events check this before settling again.
func (s *PaymentStore) FindByOrderID(ctx context.Context, orderID int) (*models.Payment, error) {
	var p models.Payment
	err := s.db.QueryRowContext(
		ctx,
		"SELECT id, order_id, amount, status, payment_method, transaction_id, created_at FROM payments WHERE order_id = $1 ORDER BY id LIMIT 1",
		orderID,
	).Scan(&p.ID, &p.OrderID, &p.Amount, &p.Status, &p.PaymentMethod, &p.TransactionID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
