package domain

import "time"

// Notification payloads published to Kafka. Field names follow the wire
// contract of the notification consumers, hence the json tags.

// OrderCreatedEvent announces a new pending order and its payment deadline.
type OrderCreatedEvent struct {
	OrderID      string    `json:"orderId"`
	CustomerID   string    `json:"customerId"`
	TotalAmount  float64   `json:"totalAmount"`
	PlacedAt     time.Time `json:"placedAt"`
	PaymentDueBy time.Time `json:"paymentDueBy"`
}

// OrderStateChangedEvent announces a lifecycle milestone (payment confirmed,
// shipped, cancelled, refunded).
type OrderStateChangedEvent struct {
	OrderID    string    `json:"orderId"`
	CustomerID string    `json:"customerId"`
	State      State     `json:"state"`
	TrackingID string    `json:"trackingId,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	At         time.Time `json:"at"`
}

// LowStockEvent is emitted by the backorder check when remaining stock for a
// product drops below the reorder threshold.
type LowStockEvent struct {
	ProductID string    `json:"productId"`
	Remaining int       `json:"remaining"`
	At        time.Time `json:"at"`
}
