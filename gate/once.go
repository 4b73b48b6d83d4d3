package gate

import (
	"sync"
	"time"
)

// OnceTask tries to run an operation only once when it is called concurrently.
//
// The first caller runs the operation while holding the task's gate closed. Callers
// arriving while it is in flight wait for the gate and share its result. A caller
// whose wait times out runs the operation itself rather than failing.
type OnceTask[T any] struct {
	timeout time.Duration
	done    *Gate

	mu      sync.Mutex
	running bool
	value   T
	err     error
}

// NewOnceTask creates a task whose waiters give up after timeout. A zero timeout waits forever.
func NewOnceTask[T any](timeout time.Duration) *OnceTask[T] {
	return &OnceTask[T]{
		timeout: timeout,
		done:    New(true),
	}
}

// Run executes fn, or waits for a concurrent execution of the task to finish and
// returns its result.
func (t *OnceTask[T]) Run(fn func() (T, error)) (T, error) {
	t.mu.Lock()
	if !t.running {
		t.running = true
		t.done.Close()
		t.mu.Unlock()

		value, err := fn()

		t.mu.Lock()
		t.value, t.err = value, err
		t.running = false
		t.done.Open()
		t.mu.Unlock()
		return value, err
	}
	t.mu.Unlock()

	if t.done.WaitTimeout(t.timeout) {
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.value, t.err
	}
	return fn()
}
