package infrastructure

import (
	"context"
	"time"

	sqlmysql "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"orderflow/internal/service/order/domain"
)

// mysqlDuplicateEntry is the server error code for a unique-key violation.
const mysqlDuplicateEntry = 1062

// closedStates are the states that no longer count as an outstanding order
// for the tier concurrent-order limit.
var closedStates = []string{
	string(domain.StateCancelled),
	string(domain.StateRefunded),
	string(domain.StateDelivered),
	string(domain.StateValidationFailed),
	string(domain.StatePaymentFailed),
	string(domain.StateInventoryFailed),
	string(domain.StateShippingFailed),
	string(domain.StateProcessingFailed),
}

// GormOrderRepository persists the order aggregate in MySQL. Concurrent
// updates are fenced with an optimistic version column: every save expects the
// version it loaded and bumps it.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository opens the MySQL connection and migrates the order
// tables.
func NewGormOrderRepository(dsn string) (*GormOrderRepository, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if err := db.AutoMigrate(&orderModel{}, &orderItemModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate order tables")
	}
	return &GormOrderRepository{db: db}, nil
}

// NewGormOrderRepositoryWithDB wraps an existing connection; used by tests.
func NewGormOrderRepositoryWithDB(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := toModel(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		var mysqlErr *sqlmysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return errors.Wrapf(err, "order %s already exists", order.ID)
		}
		return errors.Wrap(err, "create order")
	}
	return nil
}

// Save updates the order row if, and only if, its version is the one the
// caller loaded. Items are immutable after creation and are not touched.
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	order.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(&orderModel{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]any{
			"state":                 string(order.State),
			"cancel_reason":         order.CancelReason,
			"tracking_id":           order.TrackingID,
			"refund_amount":         order.RefundAmount,
			"payment_captured":      order.PaymentCaptured,
			"inventory_held":        order.InventoryHeld,
			"shipping_arranged":     order.ShippingArranged,
			"return_eligible_until": order.ReturnEligibleUntil,
			"version":               order.Version + 1,
			"updated_at":            order.UpdatedAt,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "save order")
	}
	if result.RowsAffected == 0 {
		return domain.ErrStaleOrder
	}
	order.Version++
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model orderModel
	err := r.db.WithContext(ctx).Preload("Items").First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}
	if err != nil {
		return nil, errors.Wrap(err, "find order")
	}
	return toDomain(&model), nil
}

func (r *GormOrderRepository) FindByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	var models []orderModel
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "find orders by customer")
	}
	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, toDomain(&models[i]))
	}
	return orders, nil
}

func (r *GormOrderRepository) CountOpenByCustomer(ctx context.Context, customerID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&orderModel{}).
		Where("customer_id = ? AND state NOT IN ?", customerID, closedStates).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "count open orders")
	}
	return int(count), nil
}
