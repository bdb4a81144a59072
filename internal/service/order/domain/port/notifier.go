package port

import (
	"context"
	"time"

	"orderflow/internal/service/order/domain"
)

// Notifier is the outbound port for customer-facing notifications. All sends
// are best effort: callers log failures, they never fail the workflow on them.
type Notifier interface {
	OrderCreated(ctx context.Context, order *domain.Order, paymentDueBy time.Time) error
	PaymentConfirmed(ctx context.Context, order *domain.Order) error
	OrderShipped(ctx context.Context, order *domain.Order) error
	OrderCancelled(ctx context.Context, order *domain.Order) error
	OrderRefunded(ctx context.Context, order *domain.Order) error
	LowStock(ctx context.Context, productID string, remaining int) error
}
