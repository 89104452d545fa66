package models

import "time"

type Payment struct {
	ID            int       `json:"id"`
	OrderID       int       `json:"order_id"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"payment_method"`
	TransactionID string    `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type Shipment struct {
	ID                int       `json:"id"`
	OrderID           int       `json:"order_id"`
	TrackingNumber    string    `json:"tracking_number"`
	Status            string    `json:"status"`
	Carrier           string    `json:"carrier"`
	EstimatedDelivery string    `json:"estimated_delivery"`
	CreatedAt         time.Time `json:"created_at"`
}

type Notification struct {
	ID         int       `json:"id"`
	CustomerID int       `json:"customer_id"`
	OrderID    int       `json:"order_id"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
