package state

import (
	"sync"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
)

// Record holds the latest value of a backend entity. Updates mutate it in
// place so references held by subscribers stay valid.
type Record[T any] struct {
	mu      sync.RWMutex
	value   T
	changed observe.Notifier[T]
}

// Get returns a snapshot of the current value.
func (r *Record[T]) Get() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// OnChanged subscribes to new values.
func (r *Record[T]) OnChanged(fn func(T)) (cancel func()) {
	return r.changed.Subscribe(fn)
}

func (r *Record[T]) set(v T) {
	r.mu.Lock()
	r.value = v
	r.mu.Unlock()
	r.changed.Notify(v)
}

func (r *Record[T]) update(fn func(*T)) {
	r.mu.Lock()
	fn(&r.value)
	v := r.value
	r.mu.Unlock()
	r.changed.Notify(v)
}

type User struct {
	Record[domain.User]
}

func newUser(u domain.User) *User {
	user := &User{}
	user.value = u
	return user
}

func (u *User) ID() int64 {
	return u.Get().ID
}

type BasicGroup struct {
	Record[domain.BasicGroup]
}

type Supergroup struct {
	Record[domain.Supergroup]
}

// SecretChat is a secret chat together with the user on the other side.
type SecretChat struct {
	Record[domain.SecretChat]
	user *User
}

func (s *SecretChat) User() *User {
	return s.user
}
