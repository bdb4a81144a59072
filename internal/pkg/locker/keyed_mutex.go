package locker

import (
	"context"
	"sync"
)

// KeyedMutex is an in-process Locker: one mutex per live key, reference
// counted so idle keys do not accumulate. Suitable for a single-instance
// deployment and for tests; multi-instance deployments use the ZooKeeper
// locker instead.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// Acquire blocks until the key is free or ctx is done.
func (m *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		return func() {
			<-kl.ch
			m.put(key, kl)
		}, nil
	case <-ctx.Done():
		m.put(key, kl)
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) put(key string, kl *keyLock) {
	m.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}
