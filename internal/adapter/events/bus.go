// Package events carries discovery events between the pipeline and live subscribers.
package events

import (
	"errors"
	"strings"
	"sync"
)

// ErrClosed is returned when using a closed bus
var ErrClosed = errors.New("event bus closed")

// Handler receives one event
type Handler func(subject string, data []byte)

// Subscription is an active subscription
type Subscription interface {
	Unsubscribe() error
}

// Bus publishes events and lets consumers subscribe with NATS-style
// subject patterns ("*" matches one token, ">" the rest)
type Bus interface {
	Publish(subject string, data []byte) error
	Subscribe(pattern string, handler Handler) (Subscription, error)
	Close()
}

// LocalBus is an in-process Bus used when no NATS server is configured.
// Handlers run synchronously on the publishing goroutine.
type LocalBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]localSub
	closed bool
}

var _ Bus = (*LocalBus)(nil)

type localSub struct {
	pattern string
	handler Handler
}

// NewLocalBus creates an empty in-process bus
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]localSub)}
}

// Publish delivers data to every matching subscriber
func (b *LocalBus) Publish(subject string, data []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	var handlers []Handler
	for _, s := range b.subs {
		if MatchSubject(s.pattern, subject) {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(subject, data)
	}
	return nil
}

// Subscribe registers handler for subjects matching pattern
func (b *LocalBus) Subscribe(pattern string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = localSub{pattern: pattern, handler: handler}
	return &localSubscription{bus: b, id: id}, nil
}

// Close drops every subscription
func (b *LocalBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = map[int]localSub{}
}

type localSubscription struct {
	bus *LocalBus
	id  int
}

func (s *localSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.id)
	return nil
}

// MatchSubject reports whether subject matches a NATS-style pattern
func MatchSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
