package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/matchline/internal/chat"
	"github.com/lalith-99/matchline/internal/models"
	"go.uber.org/zap"
)

type connection struct {
	hub    *Hub
	userID string
	logger *zap.Logger

	mu         sync.Mutex
	closed     bool
	subs       map[*subscription]struct{}
	lastTyping map[chat.ChannelRef]time.Time
}

func newConnection(h *Hub, userID string) *connection {
	return &connection{
		hub:        h,
		userID:     userID,
		logger:     h.logger.With(zap.String("user_id", userID)),
		subs:       make(map[*subscription]struct{}),
		lastTyping: make(map[chat.ChannelRef]time.Time),
	}
}

func (c *connection) UserID() string { return c.userID }

// requireMember is checked before every watch, query, send and keystroke.
// A missing channel is reported as ErrChannelNotFound rather than
// ErrNotMember so callers can tell a bad id from a forbidden one.
func (c *connection) requireMember(ctx context.Context, ref chat.ChannelRef) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrDisconnected
	}

	ch, err := c.hub.stores.Channels.Get(ctx, ref.Type, ref.ID)
	if err != nil {
		return err
	}
	if ch == nil {
		return fmt.Errorf("%s:%s: %w", ref.Type, ref.ID, ErrChannelNotFound)
	}

	ok, err := c.hub.stores.Members.IsMember(ctx, ref.Type, ref.ID, c.userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s:%s: %w", ref.Type, ref.ID, ErrNotMember)
	}
	return nil
}

func (c *connection) Watch(ctx context.Context, ref chat.ChannelRef) (chat.Subscription, error) {
	if err := c.requireMember(ctx, ref); err != nil {
		return nil, err
	}

	bsub, err := c.hub.broker.Subscribe(ctx, ref.Topic())
	if err != nil {
		return nil, err
	}

	sub := newSubscription(bsub, c.logger, c.forget)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// Disconnect ran while we were subscribing.
		go sub.Close()
		return nil, ErrDisconnected
	}
	c.subs[sub] = struct{}{}
	return sub, nil
}

func (c *connection) forget(s *subscription) {
	c.mu.Lock()
	delete(c.subs, s)
	c.mu.Unlock()
}

func (c *connection) QueryMessages(ctx context.Context, ref chat.ChannelRef, limit int) ([]chat.ProviderMessage, error) {
	if err := c.requireMember(ctx, ref); err != nil {
		return nil, err
	}
	limit = max(1, min(limit, maxQueryLimit))

	stored, err := c.hub.stores.Messages.ListRecent(ctx, ref.Type, ref.ID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]chat.ProviderMessage, 0, len(stored))
	for _, m := range stored {
		out = append(out, toProviderMessage(m))
	}
	return out, nil
}

// SendMessage stores the message and then publishes it. A failed
// publish is logged but not returned: the message is durable and will
// show up in history.
func (c *connection) SendMessage(ctx context.Context, ref chat.ChannelRef, text string) (chat.ProviderMessage, error) {
	text, err := cleanText(text)
	if err != nil {
		return chat.ProviderMessage{}, err
	}
	if err := c.requireMember(ctx, ref); err != nil {
		return chat.ProviderMessage{}, err
	}

	stored, err := c.hub.stores.Messages.Create(ctx, models.Message{
		ID:          uuid.NewString(),
		ChannelType: ref.Type,
		ChannelID:   ref.ID,
		UserID:      c.userID,
		Text:        text,
	})
	if err != nil {
		return chat.ProviderMessage{}, err
	}
	pm := toProviderMessage(*stored)

	ev := chat.Event{
		Type:    chat.EventMessageNew,
		Channel: ref,
		UserID:  c.userID,
		Message: &pm,
		At:      pm.CreatedAt,
	}
	if err := c.hub.publish(ctx, ev); err != nil {
		c.logger.Error("failed to publish message event",
			zap.String("channel_id", ref.ID),
			zap.String("message_id", pm.ID),
			zap.Error(err),
		)
	}
	return pm, nil
}

// Keystroke publishes typing.start at most once per typingInterval per
// channel. Only keystrokes that pass the membership check open a
// throttle window.
func (c *connection) Keystroke(ctx context.Context, ref chat.ChannelRef) error {
	if err := c.requireMember(ctx, ref); err != nil {
		return err
	}

	now := time.Now()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrDisconnected
	}
	if last, ok := c.lastTyping[ref]; ok && now.Sub(last) < typingInterval {
		c.mu.Unlock()
		return nil
	}
	c.lastTyping[ref] = now
	c.mu.Unlock()

	return c.hub.publish(ctx, chat.Event{
		Type:    chat.EventTypingStart,
		Channel: ref,
		UserID:  c.userID,
		At:      now,
	})
}

// Disconnect closes every subscription this connection opened.
func (c *connection) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.logger.Debug("client disconnected", zap.Int("subscriptions", len(subs)))
	return errors.Join(errs...)
}

func toProviderMessage(m models.Message) chat.ProviderMessage {
	return chat.ProviderMessage{
		ID:        m.ID,
		Text:      m.Text,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
	}
}
