package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker uses Redis PUBLISH/SUBSCRIBE, so watchers connected to
// different server instances see each other's events.
type RedisBroker struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBroker connects to a redis:// URL and pings it.
func NewRedisBroker(ctx context.Context, redisURL string, logger *zap.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis connection established", zap.String("addr", opts.Addr))
	return &RedisBroker{client: client, logger: logger}, nil
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, topic)

	// Wait for the server's subscribe confirmation; until then a
	// PUBLISH could slip past us.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	sub := &redisSubscription{
		ps:     ps,
		out:    make(chan []byte, subscriberBuffer),
		done:   make(chan struct{}),
		topic:  topic,
		logger: b.logger,
	}
	go sub.pump()
	return sub, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

// Health pings Redis.
func (b *RedisBroker) Health(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

type redisSubscription struct {
	ps     *redis.PubSub
	out    chan []byte
	done   chan struct{}
	once   sync.Once
	topic  string
	logger *zap.Logger
}

func (s *redisSubscription) Messages() <-chan []byte { return s.out }

func (s *redisSubscription) pump() {
	defer close(s.out)
	in := s.ps.Channel()
	for {
		select {
		case m, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.out <- []byte(m.Payload):
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
		s.logger.Debug("redis subscription closed", zap.String("topic", s.topic))
	})
	return err
}
