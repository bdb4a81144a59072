package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/order/domain"
)

// NotificationKafkaAdapter implements port.Notifier by publishing lifecycle
// events to the notification topic. Messages are keyed by customer ID so one
// customer's notifications stay ordered.
type NotificationKafkaAdapter struct {
	writer *kafka.Writer
}

func NewNotificationKafkaAdapter(writer *kafka.Writer) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

func (a *NotificationKafkaAdapter) OrderCreated(ctx context.Context, order *domain.Order, paymentDueBy time.Time) error {
	event := domain.OrderCreatedEvent{
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		TotalAmount:  order.TotalAmount,
		PlacedAt:     order.CreatedAt,
		PaymentDueBy: paymentDueBy,
	}
	return a.publish(ctx, order.CustomerID, event)
}

func (a *NotificationKafkaAdapter) PaymentConfirmed(ctx context.Context, order *domain.Order) error {
	return a.publishStateChange(ctx, order, 0)
}

func (a *NotificationKafkaAdapter) OrderShipped(ctx context.Context, order *domain.Order) error {
	return a.publishStateChange(ctx, order, 0)
}

func (a *NotificationKafkaAdapter) OrderCancelled(ctx context.Context, order *domain.Order) error {
	return a.publishStateChange(ctx, order, 0)
}

func (a *NotificationKafkaAdapter) OrderRefunded(ctx context.Context, order *domain.Order) error {
	return a.publishStateChange(ctx, order, order.RefundAmount)
}

func (a *NotificationKafkaAdapter) LowStock(ctx context.Context, productID string, remaining int) error {
	event := domain.LowStockEvent{
		ProductID: productID,
		Remaining: remaining,
		At:        time.Now(),
	}
	return a.publish(ctx, productID, event)
}

func (a *NotificationKafkaAdapter) publishStateChange(ctx context.Context, order *domain.Order, amount float64) error {
	event := domain.OrderStateChangedEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		State:      order.State,
		TrackingID: order.TrackingID,
		Reason:     order.CancelReason,
		Amount:     amount,
		At:         time.Now(),
	}
	return a.publish(ctx, order.CustomerID, event)
}

func (a *NotificationKafkaAdapter) publish(ctx context.Context, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal notification event")
	}
	if err := mq.ProduceMessage(ctx, a.writer, []byte(key), payload); err != nil {
		return errors.Wrap(err, "produce notification")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (a *NotificationKafkaAdapter) Close() error {
	return a.writer.Close()
}
