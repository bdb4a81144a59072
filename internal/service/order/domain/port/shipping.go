package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// ShippingService is the outbound port to the shipping system.
type ShippingService interface {
	// ArrangeShipping books carrier capacity for the order.
	ArrangeShipping(ctx context.Context, order *domain.Order) (bool, error)

	// CancelShipping is the compensation for ArrangeShipping.
	CancelShipping(ctx context.Context, order *domain.Order) error
}

// ShipmentStatusNotifier pushes tracking updates to an external shipment
// status system. Delivery is best effort; callers log failures and move on.
type ShipmentStatusNotifier interface {
	PushTrackingUpdate(ctx context.Context, orderID, trackingID, status string) error
}
