package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// PaymentService is the outbound port to the payment gateway.
type PaymentService interface {
	// ProcessPayment captures the order total. A false result is an explicit
	// decline; an error is a gateway fault. Both are treated as failure.
	ProcessPayment(ctx context.Context, order *domain.Order) (bool, error)

	// RefundPayment returns amount to the customer. Idempotency of repeated
	// refunds for the same order is the gateway's responsibility.
	RefundPayment(ctx context.Context, order *domain.Order, amount float64) (bool, error)
}
