package locker

import "context"

// Locker serializes workflow operations on a shared resource key. The order
// service acquires the order ID before any load-mutate-persist sequence, so at
// most one lifecycle operation per order is ever in flight.
type Locker interface {
	// Acquire blocks until the key is held or ctx is done. The returned
	// function releases the key and must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}
