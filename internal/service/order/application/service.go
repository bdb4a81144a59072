package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/locker"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/metrics"
	"orderflow/internal/service/order/application/saga"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// Saga step names. ProcessOrder maps them to failure states when a step
// breaks.
const (
	stepPayment   = "payment"
	stepInventory = "inventory"
	stepShipping  = "shipping"
)

var errPaymentDeclined = errors.New("payment declined by gateway")

// OrderService drives orders through their lifecycle: creation, the
// processing saga, cancellation and refund. All mutation is
// load-mutate-persist under a per-order lock, with the state machine gating
// every transition.
type OrderService struct {
	repo      domain.OrderRepository
	machine   *domain.StateMachine
	validator *ValidationService
	effects   *EntryEffects
	payments  port.PaymentService
	inventory port.InventoryService
	shipping  port.ShippingService
	notifier  port.Notifier
	runner    *saga.Runner
	locks     locker.Locker
	tracer    trace.Tracer

	paymentTimeout time.Duration
	paymentDue     time.Duration
}

func NewOrderService(
	repo domain.OrderRepository,
	machine *domain.StateMachine,
	validator *ValidationService,
	effects *EntryEffects,
	payments port.PaymentService,
	inventory port.InventoryService,
	shipping port.ShippingService,
	notifier port.Notifier,
	runner *saga.Runner,
	locks locker.Locker,
	tracer trace.Tracer,
	paymentTimeout, paymentDue time.Duration,
) *OrderService {
	return &OrderService{
		repo: repo, machine: machine, validator: validator, effects: effects,
		payments: payments, inventory: inventory, shipping: shipping,
		notifier: notifier, runner: runner, locks: locks, tracer: tracer,
		paymentTimeout: paymentTimeout, paymentDue: paymentDue,
	}
}

// CreateOrder validates the request structurally, checks aggregate stock
// availability, and persists a new pending order.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()

	order, err := domain.NewOrder(req.CustomerID, req.items(), req.ShippingAddress.address(), req.BillingAddress.address(), req.PaymentRef, req.Discount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	available, err := s.inventory.CheckAvailability(ctx, order.Items)
	if err != nil {
		span.RecordError(err)
		return nil, &domain.ProcessingError{OrderID: order.ID, Stage: "availability", Err: err}
	}
	if !available {
		return nil, &domain.ValidationError{OrderID: order.ID, Reasons: []string{"insufficient stock for requested items"}}
	}

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist new order")
		return nil, &domain.ProcessingError{OrderID: order.ID, Stage: "create", Err: err}
	}
	metrics.OrdersCreated.Inc()

	if err := s.notifier.OrderCreated(ctx, order, time.Now().Add(s.paymentDue)); err != nil {
		// The order exists either way; the reminder pipeline will catch up.
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", order.ID).Msg("order created notification failed")
	}

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Str("customer_id", order.CustomerID).
		Float64("total", order.TotalAmount).
		Msg("order created")
	return order, nil
}

// ProcessOrder runs the processing saga: validation, payment with a bounded
// wait, inventory reservation, shipping. Each successful step advances the
// state machine and persists; each failure records a failure state and unwinds
// prior steps in reverse order.
func (s *OrderService) ProcessOrder(ctx context.Context, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "app.ProcessOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	release, err := s.locks.Acquire(ctx, orderID)
	if err != nil {
		return &domain.ProcessingError{OrderID: orderID, Stage: "lock", Err: err}
	}
	defer release()

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	// The processing trigger is only legal where the forward flow can start.
	if !s.machine.CanTransitionTo(order.State, domain.StateValidated) {
		return &domain.InvalidTransitionError{OrderID: orderID, From: order.State, To: domain.StateValidated}
	}

	if result := s.validator.ValidateOrder(ctx, order); !result.Valid() {
		s.recordFailure(ctx, order, domain.StateValidationFailed)
		return &domain.ValidationError{OrderID: orderID, Reasons: result.Reasons}
	}
	if err := s.advance(ctx, order, domain.StateValidated); err != nil {
		return s.wrapUnexpected(ctx, order, "validated", err)
	}

	err = s.runner.Execute(ctx, orderID, []saga.Step{
		{
			Name: stepPayment,
			Run: func(stepCtx context.Context) error {
				if err := s.advance(stepCtx, order, domain.StatePaymentProcessing); err != nil {
					return err
				}
				if err := s.capturePayment(stepCtx, order); err != nil {
					return err
				}
				order.PaymentCaptured = true
				return s.advance(stepCtx, order, domain.StatePaid)
			},
			Compensate: func(compCtx context.Context) error {
				if !order.PaymentCaptured {
					return nil
				}
				ok, err := s.payments.RefundPayment(compCtx, order, order.TotalAmount)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("refund declined for order %s", order.ID)
				}
				order.PaymentCaptured = false
				order.RefundAmount = order.TotalAmount
				return nil
			},
		},
		{
			Name: stepInventory,
			Run: func(stepCtx context.Context) error {
				reserved, err := s.inventory.ReserveInventory(stepCtx, order)
				if err != nil {
					return err
				}
				if !reserved {
					return fmt.Errorf("inventory reservation rejected for order %s", order.ID)
				}
				order.InventoryHeld = true
				return s.advance(stepCtx, order, domain.StateInventoryReserved)
			},
			Compensate: func(compCtx context.Context) error {
				if !order.InventoryHeld {
					return nil
				}
				if err := s.inventory.ReleaseInventory(compCtx, order); err != nil {
					return err
				}
				order.InventoryHeld = false
				return nil
			},
		},
		{
			Name: stepShipping,
			Run: func(stepCtx context.Context) error {
				arranged, err := s.shipping.ArrangeShipping(stepCtx, order)
				if err != nil {
					return err
				}
				if !arranged {
					return fmt.Errorf("shipping arrangement rejected for order %s", order.ID)
				}
				order.ShippingArranged = true
				return s.advance(stepCtx, order, domain.StateShipped)
			},
			Compensate: func(compCtx context.Context) error {
				if !order.ShippingArranged {
					return nil
				}
				if err := s.shipping.CancelShipping(compCtx, order); err != nil {
					return err
				}
				order.ShippingArranged = false
				return nil
			},
		},
	})
	if err != nil {
		return s.handleSagaFailure(ctx, order, err)
	}

	logger.Ctx(ctx).Info().
		Str("order_id", orderID).
		Str("tracking_id", order.TrackingID).
		Msg("order processing completed")
	span.AddEvent("order processing completed")
	return nil
}

// handleSagaFailure maps a broken step to its failure state and typed error.
// Compensation has already run inside the saga runner by the time we get here.
func (s *OrderService) handleSagaFailure(ctx context.Context, order *domain.Order, err error) error {
	var stepErr *saga.StepError
	if !errors.As(err, &stepErr) {
		s.recordFailure(ctx, order, domain.StateProcessingFailed)
		return &domain.ProcessingError{OrderID: order.ID, Stage: "processing", Err: err}
	}

	metrics.SagaFailures.WithLabelValues(stepErr.Step).Inc()
	switch stepErr.Step {
	case stepPayment:
		s.recordFailure(ctx, order, domain.StatePaymentFailed)
		return &domain.PaymentError{OrderID: order.ID, Op: "capture", Err: stepErr.Err}
	case stepInventory:
		s.recordFailure(ctx, order, domain.StateInventoryFailed)
		return &domain.ProcessingError{OrderID: order.ID, Stage: stepInventory, Err: stepErr.Err}
	case stepShipping:
		s.recordFailure(ctx, order, domain.StateShippingFailed)
		return &domain.ProcessingError{OrderID: order.ID, Stage: stepShipping, Err: stepErr.Err}
	default:
		s.recordFailure(ctx, order, domain.StateProcessingFailed)
		return &domain.ProcessingError{OrderID: order.ID, Stage: stepErr.Step, Err: stepErr.Err}
	}
}

// CancelOrder cancels the order with state-dependent compensation. Cancelling
// an already cancelled or refunded order is an idempotent no-op; a delivered
// order can not be cancelled.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	release, err := s.locks.Acquire(ctx, orderID)
	if err != nil {
		return &domain.ProcessingError{OrderID: orderID, Stage: "lock", Err: err}
	}
	defer release()

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	switch order.State {
	case domain.StateCancelled, domain.StateRefunded:
		logger.Ctx(ctx).Info().
			Str("order_id", orderID).
			Str("state", string(order.State)).
			Msg("cancel requested for terminal order, nothing to do")
		return nil
	case domain.StateDelivered:
		return &domain.InvalidTransitionError{OrderID: orderID, From: order.State, To: domain.StateCancelled}
	}
	if !s.machine.CanTransitionTo(order.State, domain.StateCancelled) {
		return &domain.InvalidTransitionError{OrderID: orderID, From: order.State, To: domain.StateCancelled}
	}

	// Shipped orders need the carrier booking pulled back first; the entry
	// effects then release inventory and refund payment, each guarded by
	// whether that step actually happened.
	if order.ShippingArranged {
		if err := s.shipping.CancelShipping(ctx, order); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Msg("shipping cancellation failed")
		} else {
			order.ShippingArranged = false
		}
	}

	order.CancelReason = reason
	if err := s.advance(ctx, order, domain.StateCancelled); err != nil {
		return s.wrapUnexpected(ctx, order, "cancel", err)
	}

	logger.Ctx(ctx).Info().Str("order_id", orderID).Str("reason", reason).Msg("order cancelled")
	return nil
}

// RefundOrder refunds amount against the order. The transition guard runs
// before the payment adapter is touched, so refunding a refunded order never
// reaches the gateway. A gateway rejection leaves the order in its prior
// state.
func (s *OrderService) RefundOrder(ctx context.Context, orderID string, amount float64) error {
	ctx, span := s.tracer.Start(ctx, "app.RefundOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.Float64("refund.amount", amount))

	release, err := s.locks.Acquire(ctx, orderID)
	if err != nil {
		return &domain.ProcessingError{OrderID: orderID, Stage: "lock", Err: err}
	}
	defer release()

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	if amount <= 0 || amount > order.TotalAmount {
		return &domain.ValidationError{OrderID: orderID, Reasons: []string{
			fmt.Sprintf("refund amount %.2f must be positive and at most the order total %.2f", amount, order.TotalAmount),
		}}
	}
	if !s.machine.CanTransitionTo(order.State, domain.StateRefunded) {
		return &domain.InvalidTransitionError{OrderID: orderID, From: order.State, To: domain.StateRefunded}
	}

	ok, err := s.payments.RefundPayment(ctx, order, amount)
	if err != nil {
		return &domain.PaymentError{OrderID: orderID, Op: "refund", Err: err}
	}
	if !ok {
		return &domain.PaymentError{OrderID: orderID, Op: "refund"}
	}

	order.RefundAmount = amount
	order.PaymentCaptured = false
	if err := s.advance(ctx, order, domain.StateRefunded); err != nil {
		return s.wrapUnexpected(ctx, order, "refund", err)
	}

	logger.Ctx(ctx).Info().Str("order_id", orderID).Float64("amount", amount).Msg("order refunded")
	return nil
}

// eventTargets maps external lifecycle events (shipping webhooks and the like)
// to their target state.
var eventTargets = map[string]domain.State{
	"shipped":   domain.StateShipped,
	"delivered": domain.StateDelivered,
}

// UpdateOrderStatus applies an externally triggered lifecycle event, guarded
// by the state machine, and runs the event's entry side effects.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID, event string) error {
	ctx, span := s.tracer.Start(ctx, "app.UpdateOrderStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.event", event))

	target, ok := eventTargets[strings.ToLower(event)]
	if !ok {
		return &domain.ValidationError{OrderID: orderID, Reasons: []string{fmt.Sprintf("unknown order event %q", event)}}
	}

	release, err := s.locks.Acquire(ctx, orderID)
	if err != nil {
		return &domain.ProcessingError{OrderID: orderID, Stage: "lock", Err: err}
	}
	defer release()

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !s.machine.CanTransitionTo(order.State, target) {
		return &domain.InvalidTransitionError{OrderID: orderID, From: order.State, To: target}
	}

	// Delivery consumes the reservation: the hold is reconciled against the
	// actual shipment and no longer needs releasing on later refunds.
	if target == domain.StateDelivered {
		order.InventoryHeld = false
	}

	if err := s.advance(ctx, order, target); err != nil {
		return s.wrapUnexpected(ctx, order, "status-update", err)
	}
	logger.Ctx(ctx).Info().Str("order_id", orderID).Str("event", event).Msg("order status updated")
	return nil
}

// GetOrder loads a single order.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.FindByID(ctx, orderID)
}

// OrdersByCustomer lists a customer's orders.
func (s *OrderService) OrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	return s.repo.FindByCustomer(ctx, customerID)
}

// capturePayment dispatches the payment call and waits at most
// paymentTimeout. Timeout and decline both fail the step; they differ only in
// the error carried to the caller.
func (s *OrderService) capturePayment(ctx context.Context, order *domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()

	timer := time.Now()
	type outcome struct {
		ok  bool
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		ok, err := s.payments.ProcessPayment(ctx, order)
		done <- outcome{ok: ok, err: err}
	}()

	select {
	case result := <-done:
		metrics.PaymentDuration.Observe(time.Since(timer).Seconds())
		if result.err != nil {
			return result.err
		}
		if !result.ok {
			return errPaymentDeclined
		}
		return nil
	case <-ctx.Done():
		metrics.PaymentDuration.Observe(time.Since(timer).Seconds())
		return fmt.Errorf("payment not completed within %v: %w", s.paymentTimeout, ctx.Err())
	}
}

// advance transitions the order, runs the entry side effects, and persists.
func (s *OrderService) advance(ctx context.Context, order *domain.Order, target domain.State) error {
	if err := s.machine.Transition(order, target); err != nil {
		return err
	}
	s.effects.OnEnter(ctx, order)
	return s.repo.Save(ctx, order)
}

// recordFailure stamps a failure state and persists best-effort: the caller is
// about to surface the original error, which a failing save must not mask.
func (s *OrderService) recordFailure(ctx context.Context, order *domain.Order, state domain.State) {
	order.RecordFailure(state)
	if err := s.repo.Save(context.WithoutCancel(ctx), order); err != nil {
		logger.Ctx(ctx).Error().
			Err(err).
			Str("order_id", order.ID).
			Str("state", string(state)).
			Msg("failed to persist failure state")
	}
}

// wrapUnexpected is the outer catch-all: record a generic processing failure
// and rethrow as a ProcessingError so callers always see a typed error.
func (s *OrderService) wrapUnexpected(ctx context.Context, order *domain.Order, stage string, err error) error {
	var invalid *domain.InvalidTransitionError
	if errors.As(err, &invalid) {
		return err
	}
	s.recordFailure(ctx, order, domain.StateProcessingFailed)
	return &domain.ProcessingError{OrderID: order.ID, Stage: stage, Err: err}
}
