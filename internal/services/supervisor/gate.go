package supervisor

import (
	"context"
	"sync"
)

// admissionGate bounds the number of concurrently running workers. Unlike
// a buffered-channel semaphore it grants slots strictly FIFO: a released
// slot is handed to the longest-waiting job directly.
type admissionGate struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	waiters  []chan struct{}
}

func newAdmissionGate(capacity int) *admissionGate {
	if capacity < 1 {
		capacity = 1
	}
	return &admissionGate{capacity: capacity}
}

// Acquire blocks until a slot is free, the context is cancelled or the
// abort channel fires. Returns nil on success, the context error on
// context cancellation and errAborted on abort.
func (g *admissionGate) Acquire(ctx context.Context, abort <-chan struct{}) error {
	g.mu.Lock()
	if g.inUse < g.capacity {
		g.inUse++
		g.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	g.waiters = append(g.waiters, ready)
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		g.abandon(ready)
		return ctx.Err()
	case <-abort:
		g.abandon(ready)
		return errAborted
	}
}

// Release frees a slot, handing it to the head waiter if one exists. The
// handoff transfers ownership without touching inUse, so the count stays
// exact across the exchange.
func (g *admissionGate) Release() {
	g.mu.Lock()
	if len(g.waiters) > 0 {
		ready := g.waiters[0]
		g.waiters = g.waiters[1:]
		g.mu.Unlock()
		close(ready)
		return
	}
	g.inUse--
	g.mu.Unlock()
}

// abandon removes a waiter that stopped waiting. If the grant already
// happened the slot is passed on so it is never lost.
func (g *admissionGate) abandon(ready chan struct{}) {
	g.mu.Lock()
	for i, w := range g.waiters {
		if w == ready {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			g.mu.Unlock()
			return
		}
	}
	g.mu.Unlock()

	// Not in the queue: the grant raced the abort. Hand the slot on.
	g.Release()
}
