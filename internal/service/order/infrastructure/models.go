package infrastructure

import (
	"time"

	"orderflow/internal/service/order/domain"
)

// orderModel is the persistence shape of the order aggregate.
type orderModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	CustomerID string `gorm:"size:36;index"`

	ShipLine1      string `gorm:"size:255"`
	ShipCity       string `gorm:"size:100"`
	ShipRegion     string `gorm:"size:100"`
	ShipPostalCode string `gorm:"size:20"`
	ShipCountry    string `gorm:"size:2"`

	BillLine1      string `gorm:"size:255"`
	BillCity       string `gorm:"size:100"`
	BillRegion     string `gorm:"size:100"`
	BillPostalCode string `gorm:"size:20"`
	BillCountry    string `gorm:"size:2"`

	PaymentRef     string `gorm:"size:64"`
	TotalAmount    float64
	DiscountAmount float64
	RefundAmount   float64

	State        string `gorm:"size:32;index"`
	CancelReason string `gorm:"size:255"`
	TrackingID   string `gorm:"size:32"`

	PaymentCaptured  bool
	InventoryHeld    bool
	ShippingArranged bool

	ReturnEligibleUntil *time.Time

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time

	Items []orderItemModel `gorm:"foreignKey:OrderID"`
}

func (orderModel) TableName() string { return "orders" }

type orderItemModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	OrderID   string `gorm:"size:36;index"`
	ProductID string `gorm:"size:36"`
	Quantity  int
	UnitPrice float64
}

func (orderItemModel) TableName() string { return "order_items" }

func toModel(o *domain.Order) *orderModel {
	m := &orderModel{
		ID:         o.ID,
		CustomerID: o.CustomerID,

		ShipLine1:      o.ShippingAddress.Line1,
		ShipCity:       o.ShippingAddress.City,
		ShipRegion:     o.ShippingAddress.Region,
		ShipPostalCode: o.ShippingAddress.PostalCode,
		ShipCountry:    o.ShippingAddress.Country,

		BillLine1:      o.BillingAddress.Line1,
		BillCity:       o.BillingAddress.City,
		BillRegion:     o.BillingAddress.Region,
		BillPostalCode: o.BillingAddress.PostalCode,
		BillCountry:    o.BillingAddress.Country,

		PaymentRef:     o.PaymentRef,
		TotalAmount:    o.TotalAmount,
		DiscountAmount: o.DiscountAmount,
		RefundAmount:   o.RefundAmount,

		State:        string(o.State),
		CancelReason: o.CancelReason,
		TrackingID:   o.TrackingID,

		PaymentCaptured:  o.PaymentCaptured,
		InventoryHeld:    o.InventoryHeld,
		ShippingArranged: o.ShippingArranged,

		ReturnEligibleUntil: o.ReturnEligibleUntil,

		Version:   o.Version,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	for _, item := range o.Items {
		m.Items = append(m.Items, orderItemModel{
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return m
}

func toDomain(m *orderModel) *domain.Order {
	o := &domain.Order{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		ShippingAddress: domain.Address{
			Line1:      m.ShipLine1,
			City:       m.ShipCity,
			Region:     m.ShipRegion,
			PostalCode: m.ShipPostalCode,
			Country:    m.ShipCountry,
		},
		BillingAddress: domain.Address{
			Line1:      m.BillLine1,
			City:       m.BillCity,
			Region:     m.BillRegion,
			PostalCode: m.BillPostalCode,
			Country:    m.BillCountry,
		},
		PaymentRef:     m.PaymentRef,
		TotalAmount:    m.TotalAmount,
		DiscountAmount: m.DiscountAmount,
		RefundAmount:   m.RefundAmount,

		State:        domain.State(m.State),
		CancelReason: m.CancelReason,
		TrackingID:   m.TrackingID,

		PaymentCaptured:  m.PaymentCaptured,
		InventoryHeld:    m.InventoryHeld,
		ShippingArranged: m.ShippingArranged,

		ReturnEligibleUntil: m.ReturnEligibleUntil,

		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for _, item := range m.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return o
}
