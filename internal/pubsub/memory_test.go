package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func receive(t *testing.T, sub Subscription) []byte {
	t.Helper()
	select {
	case p, ok := <-sub.Messages():
		require.True(t, ok, "subscription closed")
		return p
	case <-time.After(time.Second):
		t.Fatal("no message")
		return nil
	}
}

func TestMemoryBroker_FanOut(t *testing.T) {
	b := NewMemoryBroker(zaptest.NewLogger(t))
	defer b.Close()

	s1, err := b.Subscribe(t.Context(), "chat:messaging:c1")
	require.NoError(t, err)
	s2, err := b.Subscribe(t.Context(), "chat:messaging:c1")
	require.NoError(t, err)
	other, err := b.Subscribe(t.Context(), "chat:messaging:c2")
	require.NoError(t, err)

	require.NoError(t, b.Publish(t.Context(), "chat:messaging:c1", []byte("hello")))

	require.Equal(t, []byte("hello"), receive(t, s1))
	require.Equal(t, []byte("hello"), receive(t, s2))
	require.Empty(t, other.Messages())
}

func TestMemoryBroker_CloseSubscription(t *testing.T) {
	b := NewMemoryBroker(zaptest.NewLogger(t))
	defer b.Close()

	sub, err := b.Subscribe(t.Context(), "t")
	require.NoError(t, err)
	require.Equal(t, 1, b.Subscribers("t"))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	require.Equal(t, 0, b.Subscribers("t"))

	_, ok := <-sub.Messages()
	require.False(t, ok)

	require.NoError(t, b.Publish(t.Context(), "t", []byte("nobody")))
}

func TestMemoryBroker_Closed(t *testing.T) {
	b := NewMemoryBroker(zaptest.NewLogger(t))
	sub, err := b.Subscribe(t.Context(), "t")
	require.NoError(t, err)

	require.NoError(t, b.Close())

	_, ok := <-sub.Messages()
	require.False(t, ok)
	require.NoError(t, sub.Close())
	require.ErrorIs(t, b.Publish(t.Context(), "t", nil), ErrClosed)
	_, err = b.Subscribe(t.Context(), "t")
	require.ErrorIs(t, err, ErrClosed)
}

func TestMemoryBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewMemoryBroker(zaptest.NewLogger(t))
	defer b.Close()

	sub, err := b.Subscribe(t.Context(), "t")
	require.NoError(t, err)

	for i := 0; i < subscriberBuffer+10; i++ {
		require.NoError(t, b.Publish(t.Context(), "t", []byte{byte(i)}))
	}
	require.Len(t, sub.Messages(), subscriberBuffer)
}
