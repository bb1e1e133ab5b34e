// Package observe delivers change notifications to subscribers.
//
// Notifiers never hold their own lock while calling a subscriber, so a
// subscriber may read the notifying object or unsubscribe from inside the
// callback. Callers are expected to release their locks before notifying.
package observe

import "sync"

// Notifier fans values out to subscribers in subscription order. The zero
// value is ready to use.
type Notifier[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it.
func (n *Notifier[T]) Subscribe(fn func(T)) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscription[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

func (n *Notifier[T]) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return
		}
	}
}

// Notify calls every subscriber with v on the calling goroutine.
func (n *Notifier[T]) Notify(v T) {
	n.mu.Lock()
	subs := n.subs
	n.mu.Unlock()
	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of subscribers.
func (n *Notifier[T]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// ItemsChanged describes a splice of an ordered list: Removed items were
// dropped at Position and then Added items were inserted there.
type ItemsChanged struct {
	Position int
	Removed  int
	Added    int
}
