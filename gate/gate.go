// Package gate provides a sticky boolean condition that goroutines can block on.
//
// Unlike a sync.Cond the gate carries its own condition: Open before Wait means
// Wait returns immediately, and the gate stays open until Close is called.
package gate

import (
	"context"
	"sync"
	"time"
)

// Gate is a sticky open/closed condition. The zero value is a closed gate.
type Gate struct {
	mu     sync.Mutex
	opened bool
	// wake is closed on every closed->open transition and replaced on Close.
	wake chan struct{}
}

// New returns a gate in the given initial state.
func New(open bool) *Gate {
	g := &Gate{}
	if open {
		g.Open()
	}
	return g
}

// Open opens the gate and releases every goroutine blocked in a Wait call.
// Opening an open gate is a no-op.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.opened {
		return
	}
	g.opened = true
	close(g.waitChanLocked())
}

// Close resets the gate. Waiters arriving after Close block until the next Open.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.opened {
		return
	}
	g.opened = false
	g.wake = nil
}

// IsOpen reports the current state.
func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.opened
}

// Wait blocks until the gate is open.
func (g *Gate) Wait() {
	for {
		ch, open := g.state()
		if open {
			return
		}
		<-ch
	}
}

// WaitTimeout blocks until the gate is open or timeout elapses and reports whether
// the gate was open on return. A zero timeout waits forever.
func (g *Gate) WaitTimeout(timeout time.Duration) bool {
	if timeout == 0 {
		g.Wait()
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		ch, open := g.state()
		if open {
			return true
		}
		select {
		case <-ch:
		case <-timer.C:
			return g.IsOpen()
		}
	}
}

// WaitContext blocks until the gate is open or ctx is done.
func (g *Gate) WaitContext(ctx context.Context) error {
	for {
		ch, open := g.state()
		if open {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			if g.IsOpen() {
				return nil
			}
			return ctx.Err()
		}
	}
}

// state returns the channel a waiter should block on along with the open flag.
// The flag is re-tested after every wake since the gate may have been closed again.
func (g *Gate) state() (<-chan struct{}, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.opened {
		return nil, true
	}
	return g.waitChanLocked(), false
}

func (g *Gate) waitChanLocked() chan struct{} {
	if g.wake == nil {
		g.wake = make(chan struct{})
	}
	return g.wake
}
