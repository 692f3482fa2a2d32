package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lalith-99/matchline/internal/auth"
	"github.com/lalith-99/matchline/internal/chat"
	"github.com/lalith-99/matchline/internal/models"
	"github.com/lalith-99/matchline/internal/pubsub"
	"github.com/lalith-99/matchline/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken    = errors.New("invalid chat token")
	ErrUnknownUser     = errors.New("chat user does not exist")
	ErrChannelNotFound = errors.New("channel does not exist")
	ErrNotMember       = errors.New("not a member of this channel")
	ErrDisconnected    = errors.New("connection is closed")
)

const (
	maxQueryLimit  = 100
	typingInterval = 2 * time.Second
)

// Stores groups the repositories the hub persists to.
type Stores struct {
	Users    repository.ChatUserRepository
	Channels repository.ChannelRepository
	Members  repository.MembershipRepository
	Messages repository.MessageRepository
}

// StoreSet is satisfied by *memory.Store.
type StoreSet interface {
	ChatUsers() repository.ChatUserRepository
	Channels() repository.ChannelRepository
	Memberships() repository.MembershipRepository
	Messages() repository.MessageRepository
}

// StoresFrom picks the hub's repositories out of a store set.
func StoresFrom(set StoreSet) Stores {
	return Stores{
		Users:    set.ChatUsers(),
		Channels: set.Channels(),
		Members:  set.Memberships(),
		Messages: set.Messages(),
	}
}

// Hub is the chat provider: users, channels and messages in Postgres,
// live events over a pubsub.Broker. It implements chat.Provider.
type Hub struct {
	stores   Stores
	broker   pubsub.Broker
	secret   string
	tokenTTL time.Duration
	logger   *zap.Logger
}

var _ chat.Provider = (*Hub)(nil)

func NewHub(stores Stores, broker pubsub.Broker, secret string, tokenTTL time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		stores:   stores,
		broker:   broker,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger.Named("chat-hub"),
	}
}

func (h *Hub) MintToken(userID string) (string, error) {
	return auth.GenerateChatToken(userID, h.secret, h.tokenTTL)
}

func (h *Hub) UpsertUser(ctx context.Context, p chat.Profile) error {
	if p.ID == "" {
		return errors.New("user id is required")
	}
	return h.stores.Users.Upsert(ctx, models.ChatUser{ID: p.ID, Name: p.Name, Image: p.Image})
}

// CreateChannel creates the channel and adds its members.
//
// The channel row and the member rows are separate writes, so a request
// that dies between them leaves a channel nobody can watch. The next
// resolve for the pair lands on the exists path: there we read the
// current members and add whoever is missing before reporting
// chat.ErrChannelExists, so the caller still sees "already there" but
// the channel is usable again.
func (h *Hub) CreateChannel(ctx context.Context, spec chat.ChannelSpec) error {
	if spec.Type == "" || spec.ID == "" {
		return errors.New("channel type and id are required")
	}

	_, err := h.stores.Channels.Create(ctx, spec.Type, spec.ID, spec.CreatedByID)
	switch {
	case err == nil:
		for _, member := range spec.Members {
			if err := h.stores.Members.AddMember(ctx, spec.Type, spec.ID, member); err != nil {
				return err
			}
		}
		return nil
	case errors.Is(err, repository.ErrChannelExists):
		if err := h.repairMembers(ctx, spec); err != nil {
			return err
		}
		return fmt.Errorf("%s:%s: %w", spec.Type, spec.ID, chat.ErrChannelExists)
	default:
		return err
	}
}

// repairMembers adds the spec members an existing channel is missing.
func (h *Hub) repairMembers(ctx context.Context, spec chat.ChannelSpec) error {
	current, err := h.stores.Members.ListMembers(ctx, spec.Type, spec.ID)
	if err != nil {
		return err
	}
	have := make(map[string]struct{}, len(current))
	for _, m := range current {
		have[m.UserID] = struct{}{}
	}

	var added []string
	for _, member := range spec.Members {
		if _, ok := have[member]; ok {
			continue
		}
		if err := h.stores.Members.AddMember(ctx, spec.Type, spec.ID, member); err != nil {
			return err
		}
		added = append(added, member)
	}
	if len(added) > 0 {
		h.logger.Info("repaired channel membership",
			zap.String("channel_id", spec.ID),
			zap.Strings("added", added),
		)
	}
	return nil
}

// Connect authenticates identity with a token minted by MintToken.
func (h *Hub) Connect(ctx context.Context, identity chat.Profile, token string) (chat.Connection, error) {
	subject, err := auth.ParseChatToken(token, h.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if subject != identity.ID {
		return nil, fmt.Errorf("%w: token is for another user", ErrInvalidToken)
	}

	u, err := h.stores.Users.GetByID(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnknownUser
	}

	h.logger.Debug("client connected", zap.String("user_id", identity.ID))
	return newConnection(h, identity.ID), nil
}

func (h *Hub) publish(ctx context.Context, ev chat.Event) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	return h.broker.Publish(ctx, ev.Channel.Topic(), payload)
}

func cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("message text is empty")
	}
	return text, nil
}
