package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doudoumed/ecommerce-microservices/internal/models"
)

type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) EnsureSchema(ctx context.Context) error {
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		total_price DECIMAL(10, 2) NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'pending',
		payment_status VARCHAR(50) NOT NULL DEFAULT 'pending',
		shipping_status VARCHAR(50) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := s.db.ExecContext(ctx, createTableQuery); err != nil {
		return fmt.Errorf("failed to create orders table: %w", err)
	}
	return nil
}

func (s *OrderStore) Create(ctx context.Context, customerID, productID, quantity int, totalPrice float64) (*models.Order, error) {
	var order models.Order
	err := s.db.QueryRowContext(
		ctx,
		"INSERT INTO orders (customer_id, product_id, quantity, total_price, status, payment_status, shipping_status) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, customer_id, product_id, quantity, total_price, status, payment_status, shipping_status, created_at, updated_at",
		customerID,
		productID,
		quantity,
		totalPrice,
		models.OrderStatusPending,
		models.PaymentStatusPending,
		models.ShippingStatusPending,
	).Scan(&order.ID, &order.CustomerID, &order.ProductID, &order.Quantity, &order.TotalPrice, &order.Status, &order.PaymentStatus, &order.ShippingStatus, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return &order, nil
}

func (s *OrderStore) GetByID(ctx context.Context, id int) (*models.Order, error) {
	var order models.Order
	err := s.db.QueryRowContext(
		ctx,
		"SELECT id, customer_id, product_id, quantity, total_price, status, payment_status, shipping_status, created_at, updated_at FROM orders WHERE id = $1",
		id,
	).Scan(&order.ID, &order.CustomerID, &order.ProductID, &order.Quantity, &order.TotalPrice, &order.Status, &order.PaymentStatus, &order.ShippingStatus, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *OrderStore) List(ctx context.Context) ([]models.Order, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT id, customer_id, product_id, quantity, total_price, status, payment_status, shipping_status, created_at, updated_at FROM orders ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.ProductID, &order.Quantity, &order.TotalPrice, &order.Status, &order.PaymentStatus, &order.ShippingStatus, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id int, status models.OrderStatus) error {
	_, err := s.db.ExecContext(
		ctx,
		"UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		status, id,
	)
	return err
}

func (s *OrderStore) UpdatePaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error {
	_, err := s.db.ExecContext(
		ctx,
		"UPDATE orders SET payment_status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		status, id,
	)
	return err
}

func (s *OrderStore) UpdateShippingStatus(ctx context.Context, id int, status models.ShippingStatus) error {
	_, err := s.db.ExecContext(
		ctx,
		"UPDATE orders SET shipping_status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		status, id,
	)
	return err
}
