package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// totalTolerance is the relative slack allowed between the recorded total and
// the recomputed item total, absorbing rounding drift across services.
const totalTolerance = 0.01

// OrderItem is a single line of an order. It is a value object owned by its
// order and never referenced outside it.
type OrderItem struct {
	ProductID string
	Quantity  int
	UnitPrice float64
}

// Subtotal is the line amount before discounts.
func (i OrderItem) Subtotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// Address is a shipping or billing destination.
type Address struct {
	Line1      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// Order is the aggregate root of the order lifecycle. It is loaded, mutated
// through state-machine-gated operations, and persisted again; nothing holds a
// long-lived in-memory reference to it.
type Order struct {
	ID         string
	CustomerID string
	Items      []OrderItem

	ShippingAddress Address
	BillingAddress  Address
	PaymentRef      string

	TotalAmount    float64
	DiscountAmount float64
	RefundAmount   float64

	State        State
	CancelReason string
	TrackingID   string

	// Compensation guards. The saga and the cancellation path consult these so
	// that a refund or release happens only when the corresponding step
	// actually succeeded earlier, and at most once.
	PaymentCaptured  bool
	InventoryHeld    bool
	ShippingArranged bool

	ReturnEligibleUntil *time.Time

	// Version backs optimistic locking in the store; bumped on every persist.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder builds a pending order from already structurally-validated input,
// computing the total as the sum of line subtotals minus the discount.
func NewOrder(customerID string, items []OrderItem, shipping, billing Address, paymentRef string, discount float64) (*Order, error) {
	if customerID == "" {
		return nil, &ValidationError{Reasons: []string{"customer id is required"}}
	}
	if len(items) == 0 {
		return nil, &ValidationError{Reasons: []string{"order must contain at least one item"}}
	}
	var reasons []string
	for _, item := range items {
		if item.ProductID == "" {
			reasons = append(reasons, "item product id is required")
		}
		if item.Quantity <= 0 {
			reasons = append(reasons, "item quantity must be positive")
		}
		if item.UnitPrice < 0 {
			reasons = append(reasons, "item unit price must not be negative")
		}
	}
	if discount < 0 {
		reasons = append(reasons, "discount must not be negative")
	}
	if len(reasons) > 0 {
		return nil, &ValidationError{Reasons: reasons}
	}

	now := time.Now()
	o := &Order{
		ID:              uuid.New().String(),
		CustomerID:      customerID,
		Items:           items,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		PaymentRef:      paymentRef,
		DiscountAmount:  discount,
		State:           StatePending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.TotalAmount = o.ItemTotal() - discount
	return o, nil
}

// ItemTotal is the sum of line subtotals, before discount.
func (o *Order) ItemTotal() float64 {
	var sum float64
	for _, item := range o.Items {
		sum += item.Subtotal()
	}
	return sum
}

// TotalConsistent reports whether the recorded total matches the recomputed
// item total minus discount within the rounding tolerance.
func (o *Order) TotalConsistent() bool {
	expected := o.ItemTotal() - o.DiscountAmount
	return math.Abs(o.TotalAmount-expected) <= math.Abs(expected)*totalTolerance
}

// QuantityByProduct aggregates requested quantity per distinct product,
// combining duplicate lines for the same product.
func (o *Order) QuantityByProduct() map[string]int {
	agg := make(map[string]int, len(o.Items))
	for _, item := range o.Items {
		agg[item.ProductID] += item.Quantity
	}
	return agg
}

// RecordFailure stamps a failure outcome on the order. Failure states sit
// outside the forward transition table, so this bypasses the legality check
// deliberately; it must only be called for states where IsFailure is true.
func (o *Order) RecordFailure(s State) {
	if !s.IsFailure() {
		return
	}
	o.setState(s)
}

func (o *Order) setState(s State) {
	o.State = s
	o.UpdatedAt = time.Now()
}
