// Package events carries process-wide session notifications to independent listeners.
//
// The credential cell has no observer mechanism of its own, so anything that must react to
// a new token or to the session being destroyed subscribes here. Listeners are typed
// functions rather than named string events.
package events

import "sync"

// TokenUpdated is published whenever a new access token is stored.
type TokenUpdated struct {
	Token string
}

// SessionCleared is published after every trace of the session has been wiped.
type SessionCleared struct{}

type subscription[T any] struct {
	id int
	fn func(T)
}

// Bus holds the listener lists. The zero value is ready to use.
type Bus struct {
	mu      sync.Mutex
	nextID  int
	updated []subscription[TokenUpdated]
	cleared []subscription[SessionCleared]
}

func NewBus() *Bus {
	return &Bus{}
}

// OnTokenUpdated registers fn and returns a function that removes it.
func (b *Bus) OnTokenUpdated(fn func(TokenUpdated)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.allocID()
	b.updated = append(b.updated, subscription[TokenUpdated]{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.updated = remove(b.updated, id)
	}
}

// OnSessionCleared registers fn and returns a function that removes it.
func (b *Bus) OnSessionCleared(fn func(SessionCleared)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.allocID()
	b.cleared = append(b.cleared, subscription[SessionCleared]{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.cleared = remove(b.cleared, id)
	}
}

// PublishTokenUpdated calls every listener in subscription order on the caller's goroutine.
func (b *Bus) PublishTokenUpdated(e TokenUpdated) {
	b.mu.Lock()
	listeners := append([]subscription[TokenUpdated](nil), b.updated...)
	b.mu.Unlock()

	for _, l := range listeners {
		l.fn(e)
	}
}

// PublishSessionCleared calls every listener in subscription order on the caller's goroutine.
func (b *Bus) PublishSessionCleared() {
	b.mu.Lock()
	listeners := append([]subscription[SessionCleared](nil), b.cleared...)
	b.mu.Unlock()

	for _, l := range listeners {
		l.fn(SessionCleared{})
	}
}

func (b *Bus) allocID() int {
	b.nextID++
	return b.nextID
}

func remove[T any](subs []subscription[T], id int) []subscription[T] {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
