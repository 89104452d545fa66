package models

// Routing keys published on the shared order_events topic exchange.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusUpdated = "order.status.updated"
	EventPaymentCompleted   = "payment.completed"
	EventShipmentCreated    = "shipment.created"
)

type OrderCreatedEvent struct {
	OrderID    int     `json:"order_id"`
	CustomerID int     `json:"customer_id"`
	ProductID  int     `json:"product_id"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"total_price"`
}

type OrderStatusUpdatedEvent struct {
	OrderID    int         `json:"order_id"`
	CustomerID int         `json:"customer_id"`
	Status     OrderStatus `json:"status"`
}

type PaymentCompletedEvent struct {
	PaymentID  int     `json:"payment_id"`
	OrderID    int     `json:"order_id"`
	Amount     float64 `json:"amount"`
	CustomerID int     `json:"customer_id"`
}

type ShipmentCreatedEvent struct {
	ShipmentID     int    `json:"shipment_id"`
	OrderID        int    `json:"order_id"`
	TrackingNumber string `json:"tracking_number"`
	CustomerID     int    `json:"customer_id"`
}
