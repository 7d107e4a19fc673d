package core

import (
	"context"
	"sync"
	"time"
)

// Gate is a level-triggered binary gate. While open, Wait returns
// immediately; while closed, Wait blocks until Open is called. Opening wakes
// every waiter parked at that moment.
type Gate struct {
	mu sync.Mutex
	ch chan struct{} // closed while the gate is open
}

// NewGate returns a gate in the given initial state.
func NewGate(open bool) *Gate {
	g := &Gate{ch: make(chan struct{})}
	if open {
		close(g.ch)
	}
	return g
}

// Open releases all current waiters. Opening an open gate is a no-op.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
	default:
		close(g.ch)
	}
}

// Close makes subsequent waiters block. Closing a closed gate is a no-op.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
		g.ch = make(chan struct{})
	default:
	}
}

// IsOpen reports the current state.
func (g *Gate) IsOpen() bool {
	select {
	case <-g.wait():
		return true
	default:
		return false
	}
}

func (g *Gate) wait() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ch
}

// Wait blocks until the gate opens. A negative timeout waits forever.
// Returns false if the timeout elapsed first.
func (g *Gate) Wait(timeout time.Duration) bool {
	ch := g.wait()
	if timeout < 0 {
		<-ch
		return true
	}

	select {
	case <-ch:
		return true
	default:
	}
	if timeout == 0 {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

// WaitContext blocks until the gate opens, the timeout elapses, or ctx is
// done. A negative timeout means no timeout.
func (g *Gate) WaitContext(ctx context.Context, timeout time.Duration) bool {
	ch := g.wait()
	select {
	case <-ch:
		return true
	default:
	}

	var timeoutC <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	case <-timeoutC:
		return false
	}
}
