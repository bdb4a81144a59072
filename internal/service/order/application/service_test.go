package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/locker"
	"orderflow/internal/service/order/application/rules"
	"orderflow/internal/service/order/application/saga"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// fixture bundles the order service with every collaborating mock, all wired
// for the happy path. Individual tests break the piece they are exercising.
type fixture struct {
	service   *OrderService
	repo      *mockRepo
	payments  *mockPayments
	inventory *mockInventory
	shipping  *mockShipping
	notifier  *mockNotifier
	shipment  *mockShipment

	// compensation call order across payments and inventory
	log []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:      newMockRepo(),
		payments:  &mockPayments{ProcessOK: true, RefundOK: true},
		inventory: &mockInventory{CheckOK: true, ReserveOK: true},
		shipping:  &mockShipping{ArrangeOK: true},
		notifier:  &mockNotifier{},
		shipment:  &mockShipment{},
	}
	f.payments.log = &f.log
	f.inventory.log = &f.log

	customers := &mockCustomers{customers: map[string]*port.Customer{"cust-1": activeCustomer(port.TierSilver)}}
	products := &mockProducts{products: map[string]*port.Product{
		"PROD-A": catalogProduct(10, 100),
		"PROD-B": catalogProduct(50, 100),
	}}

	engine, err := rules.NewEngine(rules.Defaults())
	require.NoError(t, err)

	tracer := otel.Tracer("service-test")
	validator := NewValidationService(customers, products, f.repo, engine, tracer)
	validator.now = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }

	effects := NewEntryEffects(f.notifier, products, f.inventory, f.payments, f.shipment)

	f.service = NewOrderService(
		f.repo,
		domain.NewStateMachine(),
		validator,
		effects,
		f.payments,
		f.inventory,
		f.shipping,
		f.notifier,
		saga.NewRunner(tracer),
		locker.NewKeyedMutex(),
		tracer,
		200*time.Millisecond,
		15*time.Minute,
	)
	return f
}

func createRequest() *CreateOrderRequest {
	return &CreateOrderRequest{
		CustomerID: "cust-1",
		Items: []OrderItemRequest{
			{ProductID: "PROD-A", Quantity: 3, UnitPrice: 10},
			{ProductID: "PROD-B", Quantity: 1, UnitPrice: 50},
		},
		ShippingAddress: AddressRequest{Line1: "1 Main St", City: "Berlin", Country: "DE"},
		BillingAddress:  AddressRequest{Line1: "1 Main St", City: "Berlin", Country: "DE"},
		PaymentRef:      "pm-1",
	}
}

func (f *fixture) createOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := f.service.CreateOrder(context.Background(), createRequest())
	require.NoError(t, err)
	return order
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)

	order := f.createOrder(t)

	assert.Equal(t, domain.StatePending, order.State)
	assert.Equal(t, 80.0, order.TotalAmount)
	assert.Equal(t, []string{"created"}, f.notifier.Sent)

	stored, err := f.repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.inventory.CheckOK = false

	_, err := f.service.CreateOrder(context.Background(), createRequest())

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, f.repo.orders)
}

func TestCreateOrder_AvailabilityCheckFault(t *testing.T) {
	f := newFixture(t)
	f.inventory.CheckErr = errors.New("inventory unreachable")

	_, err := f.service.CreateOrder(context.Background(), createRequest())

	var perr *domain.ProcessingError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "availability", perr.Stage)
}

func TestProcessOrder_HappyPath(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	require.NoError(t, f.service.ProcessOrder(context.Background(), order.ID))

	assert.Equal(t, domain.StateShipped, order.State)
	assert.True(t, domain.ValidTrackingID(order.TrackingID))
	assert.True(t, order.PaymentCaptured)
	assert.True(t, order.InventoryHeld)
	assert.True(t, order.ShippingArranged)

	// forward flow persisted state by state, nothing compensated
	assert.Equal(t, []domain.State{
		domain.StateValidated,
		domain.StatePaymentProcessing,
		domain.StatePaid,
		domain.StateInventoryReserved,
		domain.StateShipped,
	}, f.repo.SavedStates)
	assert.Equal(t, 0, f.payments.RefundCalls)
	assert.Equal(t, 0, f.inventory.ReleaseCalls)

	assert.Equal(t, []string{"created", "payment-confirmed", "shipped"}, f.notifier.Sent)
	require.Len(t, f.shipment.Pushes, 1)
	assert.Contains(t, f.shipment.Pushes[0], order.TrackingID)
}

func TestProcessOrder_ValidationFailure(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	f.repo.OpenCount = 5 // silver tier limit reached

	err := f.service.ProcessOrder(context.Background(), order.ID)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.StateValidationFailed, order.State)
	assert.Equal(t, 0, f.payments.CaptureCalls)
}

func TestProcessOrder_PaymentDeclined(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	f.payments.ProcessOK = false

	err := f.service.ProcessOrder(context.Background(), order.ID)

	var perr *domain.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "capture", perr.Op)
	assert.Equal(t, domain.StatePaymentFailed, order.State)

	// nothing was captured, so nothing gets refunded
	assert.Equal(t, 0, f.payments.RefundCalls)
	assert.Equal(t, 0, f.inventory.ReserveCalls)
}

func TestProcessOrder_PaymentTimeout(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	f.payments.ProcessDelay = 2 * time.Second // beyond the 200ms bound

	err := f.service.ProcessOrder(context.Background(), order.ID)

	var perr *domain.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.StatePaymentFailed, order.State)
}

func TestProcessOrder_InventoryFailureRefundsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	f.inventory.ReserveOK = false

	err := f.service.ProcessOrder(context.Background(), order.ID)

	var perr *domain.ProcessingError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "inventory", perr.Stage)
	assert.Equal(t, domain.StateInventoryFailed, order.State)

	assert.Equal(t, 1, f.payments.RefundCalls)
	assert.Equal(t, []float64{order.TotalAmount}, f.payments.RefundAmounts)
	assert.False(t, order.PaymentCaptured)
	assert.Equal(t, order.TotalAmount, order.RefundAmount)
	assert.Equal(t, 0, f.inventory.ReleaseCalls, "a failed reservation leaves nothing to release")
}

func TestProcessOrder_ShippingFailureReleasesBeforeRefund(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	f.shipping.ArrangeOK = false

	err := f.service.ProcessOrder(context.Background(), order.ID)

	var perr *domain.ProcessingError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "shipping", perr.Stage)
	assert.Equal(t, domain.StateShippingFailed, order.State)

	assert.Equal(t, []string{"release", "refund"}, f.log)
	assert.False(t, order.PaymentCaptured)
	assert.False(t, order.InventoryHeld)
}

func TestProcessOrder_ShippingPersistFailureCancelsBooking(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	// the booking succeeds but the shipped state can not be persisted
	f.repo.SaveErrOn = domain.StateShipped

	err := f.service.ProcessOrder(context.Background(), order.ID)

	var perr *domain.ProcessingError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "shipping", perr.Stage)
	assert.Equal(t, domain.StateShippingFailed, order.State)

	// the live carrier booking is pulled back, then the usual unwind
	assert.Equal(t, 1, f.shipping.CancelCalls)
	assert.False(t, order.ShippingArranged)
	assert.Equal(t, []string{"release", "refund"}, f.log)
	assert.False(t, order.InventoryHeld)
	assert.False(t, order.PaymentCaptured)
}

func TestProcessOrder_IllegalFromState(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	require.NoError(t, f.service.ProcessOrder(context.Background(), order.ID))

	// already shipped: the processing trigger has no legal first transition
	err := f.service.ProcessOrder(context.Background(), order.ID)

	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.StateShipped, invalid.From)
}

func TestProcessOrder_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.service.ProcessOrder(context.Background(), "no-such-order")

	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCancelOrder_PendingOrder(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	require.NoError(t, f.service.CancelOrder(context.Background(), order.ID, "changed my mind"))

	assert.Equal(t, domain.StateCancelled, order.State)
	assert.Equal(t, "changed my mind", order.CancelReason)
	// nothing had happened yet, so nothing to unwind
	assert.Equal(t, 0, f.payments.RefundCalls)
	assert.Equal(t, 0, f.inventory.ReleaseCalls)
	assert.Equal(t, 0, f.shipping.CancelCalls)
	assert.Contains(t, f.notifier.Sent, "cancelled")
}

func TestCancelOrder_ShippedOrderUnwindsEverything(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	require.NoError(t, f.service.ProcessOrder(context.Background(), order.ID))

	require.NoError(t, f.service.CancelOrder(context.Background(), order.ID, "customer request"))

	assert.Equal(t, domain.StateCancelled, order.State)
	assert.Equal(t, 1, f.shipping.CancelCalls)
	assert.Equal(t, 1, f.inventory.ReleaseCalls)
	assert.Equal(t, 1, f.payments.RefundCalls)
	assert.Equal(t, []string{"release", "refund"}, f.log)
	assert.False(t, order.PaymentCaptured)
	assert.False(t, order.InventoryHeld)
	assert.False(t, order.ShippingArranged)
}

func TestCancelOrder_TerminalStatesAreIdempotent(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	require.NoError(t, f.service.CancelOrder(context.Background(), order.ID, "first"))
	sent := len(f.notifier.Sent)

	require.NoError(t, f.service.CancelOrder(context.Background(), order.ID, "second"))

	assert.Equal(t, "first", order.CancelReason)
	assert.Len(t, f.notifier.Sent, sent, "repeat cancel must not notify again")
}

func TestCancelOrder_DeliveredIsRejected(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	require.NoError(t, f.service.ProcessOrder(context.Background(), order.ID))
	require.NoError(t, f.service.UpdateOrderStatus(context.Background(), order.ID, "delivered"))

	err := f.service.CancelOrder(context.Background(), order.ID, "too late")

	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.StateDelivered, order.State)
}

func TestRefundOrder(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	require.NoError(t, f.service.ProcessOrder(context.Background(), order.ID))

	require.NoError(t, f.service.RefundOrder(context.Background(), order.ID, 80))

	assert.Equal(t, domain.StateRefunded, order.State)
	assert.Equal(t, 80.0, order.RefundAmount)
	assert.Equal(t, 1, f.payments.RefundCalls)
	assert.Contains(t, f.notifier.Sent, "refunded")
}

func TestRefundOrder_ReleasesHeldInventory(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	order.State = domain.StateInventoryReserved
	order.PaymentCaptured = true
	order.InventoryHeld = true

	require.NoError(t, f.service.RefundOrder(context.Background(), order.ID, 80))

	assert.Equal(t, domain.StateRefunded, order.State)
	assert.Equal(t, 1, f.payments.RefundCalls)
	assert.Equal(t, 1, f.inventory.ReleaseCalls, "refunding a reserved order must release the stock hold")
	assert.False(t, order.InventoryHeld)
}

func TestRefundOrder_SecondRefundNeverReachesGateway(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	require.NoError(t, f.service.ProcessOrder(context.Background(), order.ID))
	require.NoError(t, f.service.RefundOrder(context.Background(), order.ID, 80))

	err := f.service.RefundOrder(context.Background(), order.ID, 80)

	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 1, f.payments.RefundCalls)
}

func TestRefundOrder_AmountBounds(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	require.NoError(t, f.service.ProcessOrder(context.Background(), order.ID))

	for _, amount := range []float64{0, -10, order.TotalAmount + 0.01} {
		err := f.service.RefundOrder(context.Background(), order.ID, amount)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr, "amount %v", amount)
	}
	assert.Equal(t, 0, f.payments.RefundCalls)
}

func TestRefundOrder_GatewayRejectionKeepsState(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	require.NoError(t, f.service.ProcessOrder(context.Background(), order.ID))
	f.payments.RefundOK = false

	err := f.service.RefundOrder(context.Background(), order.ID, 80)

	var perr *domain.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "refund", perr.Op)
	assert.Equal(t, domain.StateShipped, order.State)
	assert.Zero(t, order.RefundAmount)
}

func TestUpdateOrderStatus_Delivered(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	require.NoError(t, f.service.ProcessOrder(context.Background(), order.ID))

	require.NoError(t, f.service.UpdateOrderStatus(context.Background(), order.ID, "delivered"))

	assert.Equal(t, domain.StateDelivered, order.State)
	assert.False(t, order.InventoryHeld, "delivery consumes the reservation")
	require.NotNil(t, order.ReturnEligibleUntil)
	assert.WithinDuration(t, order.UpdatedAt.Add(30*24*time.Hour), *order.ReturnEligibleUntil, time.Second)
}

func TestUpdateOrderStatus_UnknownEvent(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	err := f.service.UpdateOrderStatus(context.Background(), order.ID, "teleported")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestUpdateOrderStatus_IllegalEvent(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	// a pending order has not been through payment, it can not ship
	err := f.service.UpdateOrderStatus(context.Background(), order.ID, "shipped")

	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.StatePending, order.State)
}

func TestLowStockNotificationOnReservation(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)

	// stock for PROD-A sits below the reorder threshold at reservation time
	f.service.effects.Products = &mockProducts{products: map[string]*port.Product{
		"PROD-A": catalogProduct(10, 2),
		"PROD-B": catalogProduct(50, 100),
	}}

	require.NoError(t, f.service.ProcessOrder(context.Background(), order.ID))

	assert.Contains(t, f.notifier.Sent, "low-stock:PROD-A")
	assert.NotContains(t, f.notifier.Sent, "low-stock:PROD-B")
}
