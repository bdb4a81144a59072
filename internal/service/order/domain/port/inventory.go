package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// InventoryService is the outbound port to the inventory system.
type InventoryService interface {
	// CheckAvailability reports whether all requested quantities are in stock.
	CheckAvailability(ctx context.Context, items []domain.OrderItem) (bool, error)

	// ReserveInventory places a hold on stock for the order. A false result
	// means the hold could not be placed.
	ReserveInventory(ctx context.Context, order *domain.Order) (bool, error)

	// ReleaseInventory is the compensation for ReserveInventory. Assumed
	// idempotent per order.
	ReleaseInventory(ctx context.Context, order *domain.Order) error
}
