package pubsub

import "context"

// Broker fans payloads out to every subscriber of a topic.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe returns once the subscription is active: anything
	// published after it returns is delivered.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	Close() error
}

// Subscription delivers payloads until Close. The channel is closed
// after Close or when the broker goes away.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

const subscriberBuffer = 64
