package eventbus

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus used by tests. Delivery is synchronous and
// sequential per queue, mirroring the broker's prefetch-1 behavior; handler
// failures follow the drop policy.
type MemoryBus struct {
	mu        sync.Mutex
	subs      []*memorySubscription
	published []Envelope
}

type memorySubscription struct {
	sub     Subscription
	handler Handler
	mu      sync.Mutex
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := encodeEnvelope(routingKey, payload)
	if err != nil {
		return err
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.published = append(b.published, env)
	subs := make([]*memorySubscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if !s.matches(routingKey) {
			continue
		}
		s.mu.Lock()
		// Drop policy: a failed handler loses the message.
		_ = s.handler(ctx, env)
		s.mu.Unlock()
	}
	return nil
}

func (b *MemoryBus) Consume(ctx context.Context, sub Subscription, h Handler) error {
	s := &memorySubscription{sub: sub, handler: h}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	for i, registered := range b.subs {
		if registered == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	return nil
}

// Deliver hands an envelope straight to matching subscribers, as if it had
// arrived from the broker (possibly a redelivery).
func (b *MemoryBus) Deliver(ctx context.Context, env Envelope) {
	b.mu.Lock()
	subs := make([]*memorySubscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if !s.matches(env.Event) {
			continue
		}
		s.mu.Lock()
		_ = s.handler(ctx, env)
		s.mu.Unlock()
	}
}

// Published returns every envelope published so far.
func (b *MemoryBus) Published() []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Envelope, len(b.published))
	copy(out, b.published)
	return out
}

// PublishedOf filters published envelopes by routing key.
func (b *MemoryBus) PublishedOf(routingKey string) []Envelope {
	var out []Envelope
	for _, env := range b.Published() {
		if env.Event == routingKey {
			out = append(out, env)
		}
	}
	return out
}

func (s *memorySubscription) matches(routingKey string) bool {
	for _, pattern := range s.sub.Patterns {
		if MatchPattern(pattern, routingKey) {
			return true
		}
	}
	return false
}
