package application

import (
	"time"

	"orderflow/internal/service/order/domain"
)

// CreateOrderRequest is the input of the create-order use case.
type CreateOrderRequest struct {
	CustomerID      string             `json:"customerId"`
	Items           []OrderItemRequest `json:"items"`
	ShippingAddress AddressRequest     `json:"shippingAddress"`
	BillingAddress  AddressRequest     `json:"billingAddress"`
	PaymentRef      string             `json:"paymentRef"`
	Discount        float64            `json:"discount"`
}

type OrderItemRequest struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type AddressRequest struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

func (r *CreateOrderRequest) items() []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return items
}

func (r AddressRequest) address() domain.Address {
	return domain.Address{
		Line1:      r.Line1,
		City:       r.City,
		Region:     r.Region,
		PostalCode: r.PostalCode,
		Country:    r.Country,
	}
}

// OrderResponse is the outward view of an order.
type OrderResponse struct {
	OrderID             string     `json:"orderId"`
	State               string     `json:"state"`
	StateDisplay        string     `json:"stateDisplay"`
	TotalAmount         float64    `json:"totalAmount"`
	DiscountAmount      float64    `json:"discountAmount,omitempty"`
	RefundAmount        float64    `json:"refundAmount,omitempty"`
	TrackingID          string     `json:"trackingId,omitempty"`
	CancelReason        string     `json:"cancelReason,omitempty"`
	ReturnEligibleUntil *time.Time `json:"returnEligibleUntil,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// ToOrderResponse maps the aggregate to its outward view.
func ToOrderResponse(o *domain.Order) *OrderResponse {
	return &OrderResponse{
		OrderID:             o.ID,
		State:               string(o.State),
		StateDisplay:        o.State.DisplayName(),
		TotalAmount:         o.TotalAmount,
		DiscountAmount:      o.DiscountAmount,
		RefundAmount:        o.RefundAmount,
		TrackingID:          o.TrackingID,
		CancelReason:        o.CancelReason,
		ReturnEligibleUntil: o.ReturnEligibleUntil,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}
