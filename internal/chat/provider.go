package chat

import (
	"context"
	"time"
)

// ChannelTypeMessaging is the only channel type used for match chats.
const ChannelTypeMessaging = "messaging"

// ChannelRef addresses a provider channel.
type ChannelRef struct {
	Type string `json:"channel_type"`
	ID   string `json:"channel_id"`
}

// Topic is the pub/sub topic live events for the channel are published on.
func (r ChannelRef) Topic() string {
	return "chat:" + r.Type + ":" + r.ID
}

// Profile is the display identity the provider shows for a user.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// ChannelSpec describes a channel to create.
type ChannelSpec struct {
	Type        string
	ID          string
	Members     []string
	CreatedByID string
}

// ProviderMessage is a message as the provider stores it.
type ProviderMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventMessageNew  EventType = "message.new"
	EventTypingStart EventType = "typing.start"
)

// Event is a live update delivered to watchers of a channel.
type Event struct {
	Type    EventType        `json:"type"`
	Channel ChannelRef       `json:"channel"`
	UserID  string           `json:"user_id"`
	Message *ProviderMessage `json:"message,omitempty"`
	At      time.Time        `json:"at"`
}

// Provider is the server side of the chat service: it holds the API
// secret, so only trusted code may call MintToken.
type Provider interface {
	MintToken(userID string) (string, error)
	UpsertUser(ctx context.Context, p Profile) error

	// CreateChannel returns ErrChannelExists if the channel is already there.
	CreateChannel(ctx context.Context, spec ChannelSpec) error

	// Connect opens a client connection as identity, authenticated by a
	// token from MintToken.
	Connect(ctx context.Context, identity Profile, token string) (Connection, error)
}

// Connection is one user's connection to the provider. Implementations
// must be safe for concurrent use.
type Connection interface {
	UserID() string

	// Watch subscribes to live events on the channel. Events published
	// after Watch returns are delivered.
	Watch(ctx context.Context, ref ChannelRef) (Subscription, error)

	// QueryMessages returns up to limit of the newest messages, oldest first.
	QueryMessages(ctx context.Context, ref ChannelRef, limit int) ([]ProviderMessage, error)

	SendMessage(ctx context.Context, ref ChannelRef, text string) (ProviderMessage, error)
	Keystroke(ctx context.Context, ref ChannelRef) error

	// Disconnect releases the connection and every subscription it opened.
	Disconnect() error
}

// Subscription is a live event stream for one channel.
type Subscription interface {
	Events() <-chan Event
	Close() error
}
