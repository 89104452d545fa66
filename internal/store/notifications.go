package store

import (
	"context"
	"database/sql"
	"fmt"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) EnsureSchema(ctx context.Context) error {
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS notifications (
		id SERIAL PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		order_id INTEGER,
		type VARCHAR(50) NOT NULL,
		message TEXT NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'sent',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := s.db.ExecContext(ctx, createTableQuery); err != nil {
		return fmt.Errorf("failed to create notifications table: %w", err)
	}
	return nil
}

func (s *NotificationStore) Create(ctx context.Context, customerID, orderID int, notificationType, message string) (int, error) {
	var notificationID int
	err := s.db.QueryRowContext(
		ctx,
		"INSERT INTO notifications (customer_id, order_id, type, message) VALUES ($1, $2, $3, $4) RETURNING id",
		customerID, orderID, notificationType, message,
	).Scan(&notificationID)
	if err != nil {
		return 0, fmt.Errorf("failed to create notification record: %w", err)
	}
	return notificationID, nil
}
