package event

import (
	"errors"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Sentinel errors for the event bus.
var (
	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrInvalidTopic is returned when a topic is empty.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrSubscriptionNotFound is returned when unsubscribing an unknown subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Handler processes a published event. The payload is type-erased; handlers
// type-assert on the topics they subscribed to.
type Handler func(topic Topic, payload any)

// Subscription represents an active registration on the bus.
type Subscription struct {
	id      uint64
	pattern Topic
	handler Handler
}

// Pattern returns the topic pattern the subscription was created with.
func (s *Subscription) Pattern() Topic {
	return s.pattern
}

// Stats reports counters for bus activity.
type Stats struct {
	Published     uint64
	Delivered     uint64
	HandlerPanics uint64
	Subscribers   int
}

// Bus is a synchronous topic-based publish/subscribe bus.
//
// Publish delivers to matching subscribers in subscription order on the
// caller's goroutine. Bus is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	nextID uint64

	published atomic.Uint64
	delivered atomic.Uint64
	panics    atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for every topic matched by pattern.
func (b *Bus) Subscribe(pattern Topic, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if pattern == "" {
		return nil, ErrInvalidTopic
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{id: b.nextID, pattern: pattern, handler: handler}
	b.subs = append(b.subs, sub)
	return sub, nil
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return ErrSubscriptionNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == sub.id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

// Publish delivers the payload to every subscriber whose pattern matches
// topic. Handler panics are recovered and logged.
func (b *Bus) Publish(topic Topic, payload any) {
	if topic == "" || topic.IsPattern() {
		return
	}

	b.mu.RLock()
	matched := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.pattern == topic || sub.pattern.Match(topic) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	b.published.Add(1)

	for _, sub := range matched {
		b.deliver(sub, topic, payload)
	}
}

func (b *Bus) deliver(sub *Subscription, topic Topic, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			log.WithField("topic", topic).Errorf("event handler panicked: %v", r)
		}
	}()

	sub.handler(topic, payload)
	b.delivered.Add(1)
}

// Stats returns current bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	subscribers := len(b.subs)
	b.mu.RUnlock()

	return Stats{
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		HandlerPanics: b.panics.Load(),
		Subscribers:   subscribers,
	}
}
