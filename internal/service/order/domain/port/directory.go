package port

import "context"

// Tier classifies a customer for order-value and outstanding-order limits.
type Tier string

const (
	TierBronze   Tier = "BRONZE"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

// Customer is the read-only view of a customer used by validation.
type Customer struct {
	ID                    string
	Active                bool
	Blocked               bool
	Tier                  Tier
	HasValidPaymentMethod bool
	Country               string
}

// Product is the read-only view of a catalog product used by validation.
type Product struct {
	ID             string
	Active         bool
	Price          float64
	AvailableStock int
	// Blocked marks a hard ordering restriction: the product cannot be ordered
	// at all right now (recall, legal hold).
	Blocked bool
	// Restricted products can be ordered, but only by authorized account tiers.
	Restricted bool
}

// CustomerDirectory is the outbound port to the customer service.
type CustomerDirectory interface {
	// GetCustomer returns the customer, or a domain.NotFoundError.
	GetCustomer(ctx context.Context, id string) (*Customer, error)
}

// ProductDirectory is the outbound port to the product catalog.
type ProductDirectory interface {
	// GetProduct returns the product, or a domain.NotFoundError.
	GetProduct(ctx context.Context, id string) (*Product, error)
}
