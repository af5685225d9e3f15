package bus

import (
	"context"
	"sync"
)

// memBufferSize bounds each in-memory subscription. Overflow is dropped,
// matching the substrate's no-delivery-guarantee model.
const memBufferSize = 256

// MemBus is an in-process Bus implementation with Redis Pub/Sub delivery
// semantics: broadcast to current subscribers, drop when nobody listens.
// It lets the whole pipeline run in a single process without a broker,
// which is how the package tests exercise it.
type MemBus struct {
	mu   sync.RWMutex
	subs map[string][]*memSubscription
}

// NewMemBus creates an empty in-memory bus.
func NewMemBus() *MemBus {
	return &MemBus{subs: make(map[string][]*memSubscription)}
}

// Publish delivers payload to every current subscriber of the channel.
func (b *MemBus) Publish(_ context.Context, channel string, payload []byte) error {
	// Copy so a slow subscriber cannot observe later mutations.
	buf := make([]byte, len(payload))
	copy(buf, payload)
	msg := Message{Channel: channel, Payload: buf}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[channel] {
		select {
		case sub.out <- msg:
		default:
			// Subscriber buffer full: message dropped, as on the wire.
		}
	}
	return nil
}

// Subscribe registers a new subscription on the channel.
func (b *MemBus) Subscribe(_ context.Context, channel string) (Subscription, error) {
	sub := &memSubscription{
		bus:     b,
		channel: channel,
		out:     make(chan Message, memBufferSize),
	}
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], sub)
	b.mu.Unlock()
	return sub, nil
}

type memSubscription struct {
	bus     *MemBus
	channel string
	out     chan Message
	once    sync.Once
}

func (s *memSubscription) Messages() <-chan Message {
	return s.out
}

func (s *memSubscription) Close() error {
	s.once.Do(func() {
		b := s.bus
		b.mu.Lock()
		subs := b.subs[s.channel]
		for i, sub := range subs {
			if sub == s {
				b.subs[s.channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(s.out)
	})
	return nil
}

var _ Bus = (*MemBus)(nil)
