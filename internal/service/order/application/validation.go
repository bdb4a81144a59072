package application

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/application/rules"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// Validation limits. Price and total comparisons tolerate 1% relative drift.
const (
	priceTolerance   = 0.01
	maxDiscountShare = 0.30
	maxOrderTotal    = 100000.0
	maxItemCount     = 50
	maxLineQuantity  = 100
	maxProductQty    = 100

	// Fraud heuristic thresholds: a line with both an unusually large quantity
	// and an unusually high unit price gets flagged for review.
	fraudQuantity  = 10
	fraudUnitPrice = 1000.0
)

// tierOutstandingLimit caps concurrent open orders per tier; -1 is unbounded.
// Unknown tiers get bronze treatment.
var tierOutstandingLimit = map[port.Tier]int{
	port.TierBronze:   3,
	port.TierSilver:   5,
	port.TierGold:     10,
	port.TierPlatinum: -1,
}

// tierOrderCeiling caps the value of a single order per tier.
var tierOrderCeiling = map[port.Tier]float64{
	port.TierBronze:   5000,
	port.TierSilver:   10000,
	port.TierGold:     25000,
	port.TierPlatinum: 100000,
}

func outstandingLimit(tier port.Tier) int {
	if limit, ok := tierOutstandingLimit[tier]; ok {
		return limit
	}
	return tierOutstandingLimit[port.TierBronze]
}

func orderCeiling(tier port.Tier) float64 {
	if ceiling, ok := tierOrderCeiling[tier]; ok {
		return ceiling
	}
	return tierOrderCeiling[port.TierBronze]
}

// ValidationService decides whether a fully populated order is admissible. It
// never mutates the order; it only reads the customer and product directories
// and the order store.
type ValidationService struct {
	customers port.CustomerDirectory
	products  port.ProductDirectory
	orders    domain.OrderRepository
	rules     *rules.Engine
	tracer    trace.Tracer

	// now is swappable so time-boxed rules are testable.
	now func() time.Time
}

func NewValidationService(customers port.CustomerDirectory, products port.ProductDirectory, orders domain.OrderRepository, engine *rules.Engine, tracer trace.Tracer) *ValidationService {
	return &ValidationService{
		customers: customers,
		products:  products,
		orders:    orders,
		rules:     engine,
		tracer:    tracer,
		now:       time.Now,
	}
}

// ValidateOrder composes all checks. The customer check is a hard gate: when
// it fails nothing else runs. The remaining checks each contribute their
// violations; the order is admissible iff the aggregate list is empty.
func (s *ValidationService) ValidateOrder(ctx context.Context, o *domain.Order) *domain.ValidationResult {
	ctx, span := s.tracer.Start(ctx, "validation.ValidateOrder")
	defer span.End()

	result := &domain.ValidationResult{}

	customer, reasons := s.ValidateCustomer(ctx, o.CustomerID)
	if len(reasons) > 0 {
		result.Add(reasons...)
		return result
	}

	result.Add(s.ValidateProductAvailability(ctx, o)...)
	result.Add(s.ValidatePricing(ctx, o)...)
	result.Add(s.ValidateBusinessRules(ctx, o, customer)...)
	result.Add(s.ValidateOrderLimits(ctx, o, customer.Tier)...)
	result.Add(s.fraudCheck(o)...)

	if !result.Valid() {
		logger.Ctx(ctx).Info().
			Str("order_id", o.ID).
			Strs("reasons", result.Reasons).
			Msg("order failed validation")
	}
	return result
}

// ValidateCustomer checks the ordering customer's eligibility. On success the
// resolved customer is returned for reuse by the other checks.
func (s *ValidationService) ValidateCustomer(ctx context.Context, customerID string) (*port.Customer, []string) {
	customer, err := s.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, []string{fmt.Sprintf("customer %s not found", customerID)}
	}

	var reasons []string
	if !customer.Active {
		reasons = append(reasons, fmt.Sprintf("customer %s is inactive", customerID))
	}
	if customer.Blocked {
		reasons = append(reasons, fmt.Sprintf("customer %s is blocked", customerID))
	}
	if !customer.HasValidPaymentMethod {
		reasons = append(reasons, fmt.Sprintf("customer %s has no valid payment method", customerID))
	}

	if limit := outstandingLimit(customer.Tier); limit >= 0 {
		open, err := s.orders.CountOpenByCustomer(ctx, customerID)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("could not determine outstanding orders for customer %s", customerID))
		} else if open >= limit {
			reasons = append(reasons, fmt.Sprintf("customer %s has %d outstanding orders, tier limit is %d", customerID, open, limit))
		}
	}

	if len(reasons) > 0 {
		return nil, reasons
	}
	return customer, nil
}

// ValidateProductAvailability aggregates requested quantity per distinct
// product (duplicate lines combine) and requires each product to exist, be
// active and unblocked, and have enough available stock. Lookups for distinct
// products run in parallel.
func (s *ValidationService) ValidateProductAvailability(ctx context.Context, o *domain.Order) []string {
	wanted := o.QuantityByProduct()

	var mu sync.Mutex
	var reasons []string
	add := func(reason string) {
		mu.Lock()
		reasons = append(reasons, reason)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	for productID, qty := range wanted {
		g.Go(func() error {
			product, err := s.products.GetProduct(gctx, productID)
			if err != nil {
				add(fmt.Sprintf("product %s not found", productID))
				return nil
			}
			if !product.Active {
				add(fmt.Sprintf("product %s is not active", productID))
			}
			if product.Blocked {
				add(fmt.Sprintf("product %s is restricted from ordering", productID))
			}
			if product.AvailableStock < qty {
				add(fmt.Sprintf("product %s has %d in stock, %d requested", productID, product.AvailableStock, qty))
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(reasons) // deterministic order across parallel lookups
	return reasons
}

// ValidatePricing verifies each line against the current catalog price (1%
// tolerance), the recorded total against current prices minus discount (1%
// tolerance), and the discount against the 30% cap.
func (s *ValidationService) ValidatePricing(ctx context.Context, o *domain.Order) []string {
	var reasons []string
	var currentTotal float64

	for _, item := range o.Items {
		product, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("product %s not found for pricing", item.ProductID))
			continue
		}
		currentTotal += product.Price * float64(item.Quantity)
		if math.Abs(item.UnitPrice-product.Price) > product.Price*priceTolerance {
			reasons = append(reasons, fmt.Sprintf("product %s priced at %.2f, catalog price is %.2f", item.ProductID, item.UnitPrice, product.Price))
		}
	}

	expected := currentTotal - o.DiscountAmount
	if math.Abs(o.TotalAmount-expected) > math.Abs(expected)*priceTolerance {
		reasons = append(reasons, fmt.Sprintf("order total %.2f does not match expected %.2f", o.TotalAmount, expected))
	}
	if o.DiscountAmount > currentTotal*maxDiscountShare {
		reasons = append(reasons, fmt.Sprintf("discount %.2f exceeds %d%% of order value", o.DiscountAmount, int(maxDiscountShare*100)))
	}
	return reasons
}

// ValidateBusinessRules evaluates the configured rule set against the order.
func (s *ValidationService) ValidateBusinessRules(ctx context.Context, o *domain.Order, customer *port.Customer) []string {
	facts := rules.Facts{
		Total:           o.TotalAmount,
		Discount:        o.DiscountAmount,
		ItemCount:       len(o.Items),
		ShippingCountry: o.ShippingAddress.Country,
		Hour:            s.now().Hour(),
	}
	if customer != nil {
		facts.CustomerTier = string(customer.Tier)
		facts.CustomerCountry = customer.Country
	}
	for productID, qty := range o.QuantityByProduct() {
		facts.ProductIDs = append(facts.ProductIDs, productID)
		facts.TotalQuantity += qty
		if product, err := s.products.GetProduct(ctx, productID); err == nil && product.Restricted {
			facts.HasRestricted = true
		}
	}
	sort.Strings(facts.ProductIDs)

	var reasons []string
	for _, name := range s.rules.Evaluate(facts) {
		reasons = append(reasons, "business rule violated: "+name)
	}
	return reasons
}

// ValidateOrderLimits enforces the global and tier-specific size ceilings.
func (s *ValidationService) ValidateOrderLimits(ctx context.Context, o *domain.Order, tier port.Tier) []string {
	var reasons []string

	if o.TotalAmount > maxOrderTotal {
		reasons = append(reasons, fmt.Sprintf("order total %.2f exceeds global maximum %.2f", o.TotalAmount, maxOrderTotal))
	}
	if len(o.Items) > maxItemCount {
		reasons = append(reasons, fmt.Sprintf("order has %d lines, maximum is %d", len(o.Items), maxItemCount))
	}
	for _, item := range o.Items {
		if item.Quantity > maxLineQuantity {
			reasons = append(reasons, fmt.Sprintf("line for product %s has quantity %d, maximum is %d", item.ProductID, item.Quantity, maxLineQuantity))
		}
	}

	products := make([]string, 0)
	wanted := o.QuantityByProduct()
	for productID := range wanted {
		products = append(products, productID)
	}
	sort.Strings(products)
	for _, productID := range products {
		if wanted[productID] > maxProductQty {
			reasons = append(reasons, fmt.Sprintf("product %s has aggregated quantity %d, maximum is %d", productID, wanted[productID], maxProductQty))
		}
	}

	if ceiling := orderCeiling(tier); o.TotalAmount > ceiling {
		reasons = append(reasons, fmt.Sprintf("order total %.2f exceeds %s tier ceiling %.2f", o.TotalAmount, tier, ceiling))
	}
	return reasons
}

// fraudCheck flags suspicious lines. A flag is a validation error like any
// other here; review workflows downstream decide whether it is fatal.
func (s *ValidationService) fraudCheck(o *domain.Order) []string {
	var reasons []string
	for _, item := range o.Items {
		if item.Quantity > fraudQuantity && item.UnitPrice > fraudUnitPrice {
			reasons = append(reasons, fmt.Sprintf("line for product %s flagged for fraud review: quantity %d at unit price %.2f", item.ProductID, item.Quantity, item.UnitPrice))
			break
		}
	}
	return reasons
}
