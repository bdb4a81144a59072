package domain

import (
	"fmt"
	"strings"
)

// The orchestrator surfaces exactly these error kinds to its callers. Internal
// rule failures are collected as data; only the boundary operations raise.

// NotFoundError reports a missing order, customer or product.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ValidationError carries the aggregated reasons an order was rejected before
// any external side effect occurred.
type ValidationError struct {
	OrderID string
	Reasons []string
}

func (e *ValidationError) Error() string {
	if e.OrderID == "" {
		return "order validation failed: " + strings.Join(e.Reasons, "; ")
	}
	return fmt.Sprintf("order %s validation failed: %s", e.OrderID, strings.Join(e.Reasons, "; "))
}

// PaymentError reports a decline, timeout or gateway fault during capture or
// refund.
type PaymentError struct {
	OrderID string
	Op      string // "capture" or "refund"
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment %s failed for order %s: %v", e.Op, e.OrderID, e.Err)
	}
	return fmt.Sprintf("payment %s declined for order %s", e.Op, e.OrderID)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// ProcessingError is the catch-all orchestration failure: inventory or
// shipping failures, and anything unexpected, after best-effort compensation.
type ProcessingError struct {
	OrderID string
	Stage   string
	Err     error
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order %s processing failed at %s: %v", e.OrderID, e.Stage, e.Err)
	}
	return fmt.Sprintf("order %s processing failed at %s", e.OrderID, e.Stage)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// InvalidTransitionError reports a requested operation that is illegal for the
// order's current state. No mutation has occurred when it is returned.
type InvalidTransitionError struct {
	OrderID string
	From    State
	To      State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: illegal transition %s -> %s", e.OrderID, e.From, e.To)
}
