// Package bus implements the in-process notification fan-out. Delivery is
// synchronous and at-most-once per connected subscriber. The bus keeps no
// state: no persistence, no backpressure queue, no replay.
package bus

import (
	"sync"

	"herdcore/pkg/domain"
)

// Handler receives envelopes as they are published.
type Handler func(domain.Envelope)

// Bus fans envelopes out to connected subscribers in connection order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []*Subscription
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscription is one connected consumer: a single handler plus a topic
// filter. An empty filter means all topics.
type Subscription struct {
	id      int
	bus     *Bus
	handler Handler

	mu     sync.RWMutex
	topics map[domain.Topic]struct{}
}

// Connect registers a handler and returns its subscription. A freshly
// connected subscription receives all topics until a filter is set.
func (b *Bus) Connect(handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{id: b.nextID, bus: b, handler: handler}
	b.subs = append(b.subs, sub)
	return sub
}

// Subscribe replaces the subscription's topic filter. Calling with no topics
// restores the all-topics filter.
func (s *Subscription) Subscribe(topics ...domain.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(topics) == 0 {
		s.topics = nil
		return
	}
	set := make(map[domain.Topic]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	s.topics = set
}

// Close disconnects the subscription. Envelopes published afterwards are
// not delivered and are never replayed.
func (s *Subscription) Close() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == s.id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func (s *Subscription) wants(topic domain.Topic) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.topics == nil {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// Publish delivers the envelope synchronously to every currently connected
// subscriber whose filter matches, in connection order. A panicking handler
// is isolated so the remaining subscribers still receive the envelope.
func (b *Bus) Publish(env domain.Envelope) {
	b.mu.RLock()
	subs := append([]*Subscription(nil), b.subs...)
	b.mu.RUnlock()
	for _, sub := range subs {
		if !sub.wants(env.Topic) {
			continue
		}
		deliver(sub.handler, env)
	}
}

func deliver(h Handler, env domain.Envelope) {
	defer func() {
		_ = recover()
	}()
	h(env)
}

// Subscribers reports the number of connected subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
