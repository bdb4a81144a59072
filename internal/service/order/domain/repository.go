package domain

import (
	"context"
	"errors"
)

// ErrStaleOrder is returned by Save when the persisted version no longer
// matches the loaded one, i.e. another workflow operation won the race.
var ErrStaleOrder = errors.New("order was modified concurrently")

// OrderRepository is the persistence port for the order aggregate. It lives in
// the domain layer and is implemented by the infrastructure layer.
type OrderRepository interface {
	// Create persists a new order.
	Create(ctx context.Context, order *Order) error

	// Save persists a mutated order using an optimistic version check and
	// returns ErrStaleOrder on a lost race. On success the in-memory version
	// is bumped.
	Save(ctx context.Context, order *Order) error

	// FindByID loads an order, or returns a NotFoundError.
	FindByID(ctx context.Context, id string) (*Order, error)

	// FindByCustomer lists a customer's orders, newest first.
	FindByCustomer(ctx context.Context, customerID string) ([]*Order, error)

	// CountOpenByCustomer counts the customer's orders that are not yet in a
	// terminal or failure state. Used by the tier outstanding-order limit.
	CountOpenByCustomer(ctx context.Context, customerID string) (int, error)
}
