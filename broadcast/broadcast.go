// Package broadcast provides a replay-latest publisher whose observers receive each
// published value exactly once.
//
// Observers are identified by a caller-chosen ID rather than by their callback, so
// a consumer that detaches and re-attaches (a screen being recreated, say) is
// recognised as the same observer and is not handed a value it already consumed.
package broadcast

import (
	"sync"
)

// Broadcaster publishes values of type T to attached observers.
type Broadcaster[T any] struct {
	mu        sync.Mutex
	seq       uint64 // sequence number of latest; 0 until the first Publish
	latest    T
	subs      []*Subscription[T] // attachment order
	delivered map[string]uint64  // observer ID -> last sequence delivered
}

// Subscription is an attached observer. Detach it with Unsubscribe.
type Subscription[T any] struct {
	id     string
	fn     func(T)
	b      *Broadcaster[T]
	active bool // guarded by b.mu

	// A subscription runs one callback at a time. Values claimed while a callback is
	// running wait in queued and are delivered by that same goroutine when it returns.
	busy       bool // guarded by b.mu
	queued     *queuedValue[T]
	lastCalled uint64 // sequence of the last value handed to fn
}

type queuedValue[T any] struct {
	seq   uint64
	value T
}

// New creates an empty broadcaster.
func New[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{
		delivered: make(map[string]uint64),
	}
}

// Subscribe attaches fn under observerID. If a value has been published that this
// observer has not yet seen, fn receives it before Subscribe returns, unless a newer
// value reaches the observer first.
//
// Subscribing with the ID of an observer that is still attached replaces the
// previous registration.
func (b *Broadcaster[T]) Subscribe(observerID string, fn func(T)) *Subscription[T] {
	sub := &Subscription[T]{id: observerID, fn: fn, b: b, active: true}

	b.mu.Lock()
	for _, existing := range b.subs {
		if existing.id == observerID {
			b.removeLocked(existing)
			break
		}
	}
	b.subs = append(b.subs, sub)
	seq, value := b.seq, b.latest
	b.mu.Unlock()

	if seq > 0 {
		b.deliver(sub, seq, value)
	}
	return sub
}

// Unsubscribe detaches sub. It is safe to call from inside a callback and more than once.
func (b *Broadcaster[T]) Unsubscribe(sub *Subscription[T]) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

// Publish records v as the latest value and delivers it, in attachment order, to
// every attached observer that has not already received it. Callbacks run on the
// publishing goroutine without the broadcaster's lock held. A value published from
// inside a callback reaches that callback's observer after the callback returns.
func (b *Broadcaster[T]) Publish(v T) {
	b.Stage(v)()
}

// Stage records v as the latest value and returns the function that delivers it.
// Callers that keep their own state alongside the broadcaster stage under their lock
// and deliver after releasing it, so the order of values matches the order of their
// state changes. Observers never receive an older value after a newer one.
func (b *Broadcaster[T]) Stage(v T) (deliver func()) {
	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.latest = v
	subs := make([]*Subscription[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	return func() {
		for _, sub := range subs {
			b.deliver(sub, seq, v)
		}
	}
}

// Latest returns the most recently published value.
func (b *Broadcaster[T]) Latest() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.seq > 0
}

// Len returns the number of attached observers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// deliver hands the value with sequence seq to sub unless sub was detached or its
// observer already received seq or anything newer.
func (b *Broadcaster[T]) deliver(sub *Subscription[T], seq uint64, v T) {
	b.mu.Lock()
	if !sub.active || b.delivered[sub.id] >= seq {
		b.mu.Unlock()
		return
	}
	b.delivered[sub.id] = seq
	if sub.busy {
		sub.queued = &queuedValue[T]{seq: seq, value: v}
		b.mu.Unlock()
		return
	}

	sub.busy = true
	for {
		sub.lastCalled = seq
		b.mu.Unlock()
		b.call(sub, v)
		b.mu.Lock()

		next := sub.queued
		sub.queued = nil
		if next == nil {
			break
		}
		if !sub.active {
			// The queued value was never handed over; let a later subscription under
			// the same ID receive it.
			if b.delivered[sub.id] == next.seq {
				b.delivered[sub.id] = sub.lastCalled
			}
			break
		}
		seq, v = next.seq, next.value
	}
	sub.busy = false
	b.mu.Unlock()
}

// call runs sub's callback. If the callback panics the subscription is released
// before the panic continues, so later values still reach it.
func (b *Broadcaster[T]) call(sub *Subscription[T], v T) {
	returned := false
	defer func() {
		if !returned {
			b.mu.Lock()
			sub.busy = false
			sub.queued = nil
			b.mu.Unlock()
		}
	}()
	sub.fn(v)
	returned = true
}

func (b *Broadcaster[T]) removeLocked(sub *Subscription[T]) {
	if !sub.active {
		return
	}
	sub.active = false
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// ObserverID returns the ID the subscription was registered under.
func (s *Subscription[T]) ObserverID() string {
	return s.id
}

// Unsubscribe detaches the subscription from its broadcaster.
func (s *Subscription[T]) Unsubscribe() {
	s.b.Unsubscribe(s)
}
