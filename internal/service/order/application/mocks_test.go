package application

import (
	"context"
	"errors"
	"time"

	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// mockRepo implements domain.OrderRepository in memory. SavedStates records
// the order state at each successful Save so tests can assert the persisted
// progression.
type mockRepo struct {
	orders map[string]*domain.Order

	CreateErr error
	SaveErr   error
	// SaveErrOn fails only the save that would persist the given state,
	// leaving earlier and later saves untouched.
	SaveErrOn domain.State
	OpenCount int
	OpenErr   error

	SavedStates []domain.State
}

func newMockRepo() *mockRepo {
	return &mockRepo{orders: make(map[string]*domain.Order)}
}

func (m *mockRepo) Create(_ context.Context, order *domain.Order) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockRepo) Save(_ context.Context, order *domain.Order) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if m.SaveErrOn != "" && order.State == m.SaveErrOn {
		return errors.New("store unavailable")
	}
	order.Version++
	m.orders[order.ID] = order
	m.SavedStates = append(m.SavedStates, order.State)
	return nil
}

func (m *mockRepo) FindByID(_ context.Context, id string) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}
	return order, nil
}

func (m *mockRepo) FindByCustomer(_ context.Context, customerID string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, order := range m.orders {
		if order.CustomerID == customerID {
			out = append(out, order)
		}
	}
	return out, nil
}

func (m *mockRepo) CountOpenByCustomer(_ context.Context, _ string) (int, error) {
	return m.OpenCount, m.OpenErr
}

// mockCustomers implements port.CustomerDirectory.
type mockCustomers struct {
	customers map[string]*port.Customer
}

func (m *mockCustomers) GetCustomer(_ context.Context, id string) (*port.Customer, error) {
	customer, ok := m.customers[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "customer", ID: id}
	}
	return customer, nil
}

// mockProducts implements port.ProductDirectory.
type mockProducts struct {
	products map[string]*port.Product
}

func (m *mockProducts) GetProduct(_ context.Context, id string) (*port.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "product", ID: id}
	}
	return product, nil
}

// mockPayments implements port.PaymentService. Calls are appended to the
// shared log, so cross-service ordering (release before refund) is checkable.
type mockPayments struct {
	ProcessOK    bool
	ProcessErr   error
	ProcessDelay time.Duration
	RefundOK     bool
	RefundErr    error

	CaptureCalls  int
	RefundCalls   int
	RefundAmounts []float64

	log *[]string
}

func (m *mockPayments) ProcessPayment(ctx context.Context, _ *domain.Order) (bool, error) {
	m.CaptureCalls++
	if m.ProcessDelay > 0 {
		select {
		case <-time.After(m.ProcessDelay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return m.ProcessOK, m.ProcessErr
}

func (m *mockPayments) RefundPayment(_ context.Context, _ *domain.Order, amount float64) (bool, error) {
	m.RefundCalls++
	m.RefundAmounts = append(m.RefundAmounts, amount)
	if m.log != nil {
		*m.log = append(*m.log, "refund")
	}
	return m.RefundOK, m.RefundErr
}

// mockInventory implements port.InventoryService.
type mockInventory struct {
	CheckOK    bool
	CheckErr   error
	ReserveOK  bool
	ReserveErr error
	ReleaseErr error

	ReserveCalls int
	ReleaseCalls int

	log *[]string
}

func (m *mockInventory) CheckAvailability(_ context.Context, _ []domain.OrderItem) (bool, error) {
	return m.CheckOK, m.CheckErr
}

func (m *mockInventory) ReserveInventory(_ context.Context, _ *domain.Order) (bool, error) {
	m.ReserveCalls++
	return m.ReserveOK, m.ReserveErr
}

func (m *mockInventory) ReleaseInventory(_ context.Context, _ *domain.Order) error {
	m.ReleaseCalls++
	if m.log != nil {
		*m.log = append(*m.log, "release")
	}
	return m.ReleaseErr
}

// mockShipping implements port.ShippingService.
type mockShipping struct {
	ArrangeOK  bool
	ArrangeErr error
	CancelErr  error

	ArrangeCalls int
	CancelCalls  int
}

func (m *mockShipping) ArrangeShipping(_ context.Context, _ *domain.Order) (bool, error) {
	m.ArrangeCalls++
	return m.ArrangeOK, m.ArrangeErr
}

func (m *mockShipping) CancelShipping(_ context.Context, _ *domain.Order) error {
	m.CancelCalls++
	return m.CancelErr
}

// mockNotifier implements port.Notifier, recording the sent notification kinds.
type mockNotifier struct {
	Err  error
	Sent []string
}

func (m *mockNotifier) record(kind string) error {
	m.Sent = append(m.Sent, kind)
	return m.Err
}

func (m *mockNotifier) OrderCreated(_ context.Context, _ *domain.Order, _ time.Time) error {
	return m.record("created")
}

func (m *mockNotifier) PaymentConfirmed(_ context.Context, _ *domain.Order) error {
	return m.record("payment-confirmed")
}

func (m *mockNotifier) OrderShipped(_ context.Context, _ *domain.Order) error {
	return m.record("shipped")
}

func (m *mockNotifier) OrderCancelled(_ context.Context, _ *domain.Order) error {
	return m.record("cancelled")
}

func (m *mockNotifier) OrderRefunded(_ context.Context, _ *domain.Order) error {
	return m.record("refunded")
}

func (m *mockNotifier) LowStock(_ context.Context, productID string, _ int) error {
	return m.record("low-stock:" + productID)
}

// mockShipment implements port.ShipmentStatusNotifier.
type mockShipment struct {
	Err    error
	Pushes []string
}

func (m *mockShipment) PushTrackingUpdate(_ context.Context, orderID, trackingID, status string) error {
	m.Pushes = append(m.Pushes, orderID+"/"+trackingID+"/"+status)
	return m.Err
}
