package application

import (
	"context"
	"time"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/metrics"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// Defaults for the entry effects; overridable through the EntryEffects fields.
const (
	defaultCarrier           = "UPS"
	defaultLowStockThreshold = 5
	defaultReturnWindow      = 30 * 24 * time.Hour
)

// EntryEffects runs the side effects that accompany entry into a state: one
// switch over the state set rather than per-state subtypes. Every effect is
// best effort, failures are logged and never returned, so a flaky notification
// can not wedge a lifecycle transition.
type EntryEffects struct {
	Notifier  port.Notifier
	Products  port.ProductDirectory
	Inventory port.InventoryService
	Payments  port.PaymentService
	Shipment  port.ShipmentStatusNotifier

	Carrier           string
	LowStockThreshold int
	ReturnWindow      time.Duration
}

// NewEntryEffects wires the dispatcher with default carrier, low-stock
// threshold and return window.
func NewEntryEffects(notifier port.Notifier, products port.ProductDirectory, inventory port.InventoryService, payments port.PaymentService, shipment port.ShipmentStatusNotifier) *EntryEffects {
	return &EntryEffects{
		Notifier:          notifier,
		Products:          products,
		Inventory:         inventory,
		Payments:          payments,
		Shipment:          shipment,
		Carrier:           defaultCarrier,
		LowStockThreshold: defaultLowStockThreshold,
		ReturnWindow:      defaultReturnWindow,
	}
}

// OnEnter runs the side effects for the order's current state. Called exactly
// once per transition, after the state field has been updated.
func (e *EntryEffects) OnEnter(ctx context.Context, o *domain.Order) {
	metrics.StateTransitions.WithLabelValues(string(o.State)).Inc()

	switch o.State {
	case domain.StatePaid:
		e.try(ctx, o, "payment confirmation notification", e.Notifier.PaymentConfirmed(ctx, o))

	case domain.StateInventoryReserved:
		e.backorderCheck(ctx, o)

	case domain.StateShipped:
		if o.TrackingID == "" {
			o.TrackingID = domain.GenerateTrackingID(e.Carrier)
		}
		e.try(ctx, o, "shipment status push", e.Shipment.PushTrackingUpdate(ctx, o.ID, o.TrackingID, string(domain.StateShipped)))
		e.try(ctx, o, "shipped notification", e.Notifier.OrderShipped(ctx, o))

	case domain.StateDelivered:
		until := o.UpdatedAt.Add(e.ReturnWindow)
		o.ReturnEligibleUntil = &until

	case domain.StateCancelled:
		e.releaseIfHeld(ctx, o)
		e.refundIfCaptured(ctx, o)
		e.try(ctx, o, "cancelled notification", e.Notifier.OrderCancelled(ctx, o))

	case domain.StateRefunded:
		// A refund can arrive while stock is still reserved (before shipping,
		// or after a return); the hold must be released alongside the refund.
		e.releaseIfHeld(ctx, o)
		// The refund operation clears PaymentCaptured before transitioning, so
		// this guard only fires for refunds arriving through other paths and
		// can never double-refund.
		e.refundIfCaptured(ctx, o)
		e.try(ctx, o, "refunded notification", e.Notifier.OrderRefunded(ctx, o))
	}
}

// backorderCheck inspects remaining stock for every product on the order and
// raises a low-stock notification when it dips below the reorder threshold.
func (e *EntryEffects) backorderCheck(ctx context.Context, o *domain.Order) {
	for productID := range o.QuantityByProduct() {
		product, err := e.Products.GetProduct(ctx, productID)
		if err != nil {
			e.try(ctx, o, "backorder stock lookup", err)
			continue
		}
		if product.AvailableStock < e.LowStockThreshold {
			e.try(ctx, o, "low stock notification", e.Notifier.LowStock(ctx, productID, product.AvailableStock))
		}
	}
}

// releaseIfHeld releases reserved inventory if, and only if, a reservation
// actually happened and has not been released yet.
func (e *EntryEffects) releaseIfHeld(ctx context.Context, o *domain.Order) {
	if !o.InventoryHeld {
		return
	}
	if err := e.Inventory.ReleaseInventory(ctx, o); err != nil {
		e.try(ctx, o, "inventory release", err)
		return
	}
	o.InventoryHeld = false
}

// refundIfCaptured initiates a refund if, and only if, a capture actually
// happened and has not been refunded yet.
func (e *EntryEffects) refundIfCaptured(ctx context.Context, o *domain.Order) {
	if !o.PaymentCaptured {
		return
	}
	ok, err := e.Payments.RefundPayment(ctx, o, o.TotalAmount)
	if err != nil {
		e.try(ctx, o, "refund initiation", err)
		return
	}
	if !ok {
		logger.Ctx(ctx).Warn().Str("order_id", o.ID).Msg("refund initiation declined by gateway")
		return
	}
	o.PaymentCaptured = false
	o.RefundAmount = o.TotalAmount
}

func (e *EntryEffects) try(ctx context.Context, o *domain.Order, what string, err error) {
	if err != nil {
		logger.Ctx(ctx).Warn().
			Err(err).
			Str("order_id", o.ID).
			Msgf("%s failed", what)
	}
}
