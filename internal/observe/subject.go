// Package observe provides a small typed publish/subscribe subject with synchronous delivery.
package observe

import "sync"

// Subject broadcasts values of type T to its subscribers. Publish calls every subscriber
// synchronously on the publishing goroutine, in subscription order. The zero value is ready to use.
type Subject[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it. The returned function is
// idempotent. A nil fn is ignored.
func (s *Subject[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

// Publish delivers v to a snapshot of the current subscribers. Subscribers may subscribe or
// unsubscribe from inside their callback; changes apply to the next Publish.
func (s *Subject[T]) Publish(v T) {
	s.mu.Lock()
	subs := make([]subscription[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
}

// Len returns the number of active subscribers.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Subject[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}
