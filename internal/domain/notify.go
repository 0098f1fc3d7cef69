package domain

import "sync"

// Event is a list of listeners notified synchronously, in subscription order.
type Event[T any] struct {
	mu        sync.Mutex
	nextID    int
	listeners []listener[T]
}

type listener[T any] struct {
	id int
	fn func(T)
}

// AddListener subscribes fn and returns a function that unsubscribes it.
func (e *Event[T]) AddListener(fn func(T)) (remove func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.listeners = append(e.listeners, listener[T]{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// NumberOfListeners reports how many listeners are subscribed.
func (e *Event[T]) NumberOfListeners() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Raise calls every listener with v. Listeners added or removed during Raise
// take effect on the next call.
func (e *Event[T]) Raise(v T) {
	e.mu.Lock()
	ls := make([]listener[T], len(e.listeners))
	copy(ls, e.listeners)
	e.mu.Unlock()

	for _, l := range ls {
		l.fn(v)
	}
}
