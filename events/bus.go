// Package events is the in-process channel the SDK uses to announce auth
// state transitions and request lifecycle milestones. Producers publish by
// topic; consumers subscribe without coupling to the producer.
package events

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Topic identifies a class of event.
type Topic string

// Auth lifecycle topics. Payloads are documented on the publishing method.
const (
	TopicAuthChanged Topic = "auth:changed" // payload: bool (authenticated)

	TopicLoginStart   Topic = "auth:login:start"
	TopicLoginSuccess Topic = "auth:login:success"
	TopicLoginError   Topic = "auth:login:error"

	TopicRefreshStart   Topic = "auth:token:refresh:start"
	TopicRefreshSuccess Topic = "auth:token:refresh:success"
	TopicRefreshError   Topic = "auth:token:refresh:error"

	TopicRevokeStart   Topic = "auth:token:revoke:start"
	TopicRevokeSuccess Topic = "auth:token:revoke:success"
	TopicRevokeError   Topic = "auth:token:revoke:error"
)

// Request lifecycle topics. Payload is a pipeline request summary.
const (
	TopicRequestStart Topic = "request:start"
	TopicRequestRetry Topic = "request:retry"
	TopicRequestEnd   Topic = "request:end"
)

// Event is a single published notification.
type Event struct {
	ID      string
	Topic   Topic
	Time    time.Time
	Payload any
}

// Handler receives published events.
type Handler func(Event)

// Bus is a process-local publish/subscribe channel. Delivery is synchronous
// and in subscription order on the publishing goroutine, so observers see
// state transitions in the order they happened.
//
// A Bus belongs to one SDK instance; it is never a process-wide singleton.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[Topic]map[int]Handler
	all  map[int]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[Topic]map[int]Handler),
		all:  make(map[int]Handler),
	}
}

// Subscribe registers a handler for one topic. The returned function
// removes the subscription; calling it more than once is harmless.
func (b *Bus) Subscribe(topic Topic, h Handler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.subs[topic][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// SubscribeAll registers a handler for every topic.
func (b *Bus) SubscribeAll(h Handler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.all[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.all, id)
	}
}

// Publish delivers an event to every subscriber of its topic, then to the
// all-topic subscribers. Handlers run on the caller's goroutine.
func (b *Bus) Publish(topic Topic, payload any) {
	ev := Event{
		ID:      ulid.Make().String(),
		Topic:   topic,
		Time:    time.Now(),
		Payload: payload,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic])+len(b.all))
	for id := 0; id < b.next; id++ {
		if h, ok := b.subs[topic][id]; ok {
			handlers = append(handlers, h)
		}
	}
	for id := 0; id < b.next; id++ {
		if h, ok := b.all[id]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
