package core

import "context"

// Gate bounds the number of concurrently admitted units of work. It is the
// concurrency-limiting primitive behind parallel execution: callers acquire a
// slot before dispatching and release it when done, so at most max tasks are
// in flight at any moment.
type Gate struct {
	slots chan struct{}
}

// NewGate creates a gate admitting up to max concurrent holders.
// If max <= 0 the gate is unbounded.
func NewGate(max int) *Gate {
	if max <= 0 {
		return &Gate{}
	}
	return &Gate{slots: make(chan struct{}, max)}
}

// Acquire blocks until a slot is free or the context is cancelled.
func (g *Gate) Acquire(ctx context.Context) error {
	if g.slots == nil {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case g.slots <- struct{}{}:
		return nil
	}
}

// Release frees a previously acquired slot.
func (g *Gate) Release() {
	if g.slots == nil {
		return
	}
	<-g.slots
}
