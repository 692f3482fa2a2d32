package pubsub

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned after the broker has been closed.
var ErrClosed = errors.New("broker closed")

// MemoryBroker is an in-process Broker for single-instance deployments
// and tests. A subscriber whose buffer is full misses the payload.
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string]map[*memorySubscription]struct{}
	closed bool
	logger *zap.Logger
}

func NewMemoryBroker(logger *zap.Logger) *MemoryBroker {
	return &MemoryBroker{
		topics: make(map[string]map[*memorySubscription]struct{}),
		logger: logger,
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	for sub := range b.topics[topic] {
		select {
		case sub.out <- payload:
		default:
			b.logger.Warn("dropping event for slow subscriber", zap.String("topic", topic))
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	sub := &memorySubscription{
		broker: b,
		topic:  topic,
		out:    make(chan []byte, subscriberBuffer),
	}
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*memorySubscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	return sub, nil
}

// Subscribers reports how many live subscriptions a topic has.
func (b *MemoryBroker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for topic, subs := range b.topics {
		for sub := range subs {
			sub.closed = true
			close(sub.out)
		}
		delete(b.topics, topic)
	}
	return nil
}

type memorySubscription struct {
	broker *MemoryBroker
	topic  string
	out    chan []byte
	closed bool // guarded by broker.mu
}

func (s *memorySubscription) Messages() <-chan []byte { return s.out }

func (s *memorySubscription) Close() error {
	b := s.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.out)
	delete(b.topics[s.topic], s)
	if len(b.topics[s.topic]) == 0 {
		delete(b.topics, s.topic)
	}
	return nil
}
