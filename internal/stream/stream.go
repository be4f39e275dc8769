// Package stream provides the latest-value push streams that downstream
// consumers attach to. A stream retains the most recent published value:
// new subscribers receive it synchronously, and every publish notifies
// all subscribers synchronously in registration order.
//
// This is a deliberate observer-list design rather than a channel bus:
// the engine's contract requires synchronous in-order delivery, which
// buffered channels cannot guarantee.
package stream

import "sync"

// Stream is a typed latest-value stream.
type Stream[T any] struct {
	mu          sync.Mutex
	subscribers []subscriber[T]
	nextID      int
	latest      T
	hasValue    bool
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// New creates an empty stream with no published value.
func New[T any]() *Stream[T] {
	return &Stream[T]{}
}

// Publish stores v as the latest value and notifies all current
// subscribers in registration order. Callbacks run synchronously on the
// publishing goroutine, outside the stream's lock.
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	s.latest = v
	s.hasValue = true
	subs := make([]subscriber[T], len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
}

// Subscribe registers fn and returns its unsubscribe function. If a value
// has been published, fn receives it synchronously before Subscribe
// returns. Unsubscribing is immediate and idempotent.
func (s *Stream[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers = append(s.subscribers, subscriber[T]{id: id, fn: fn})
	current := s.latest
	deliver := s.hasValue
	s.mu.Unlock()

	if deliver {
		fn(current)
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Latest returns the most recent published value, if any.
func (s *Stream[T]) Latest() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasValue
}

// SubscriberCount returns the number of active subscribers.
func (s *Stream[T]) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
