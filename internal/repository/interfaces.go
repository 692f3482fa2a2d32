package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lalith-99/matchline/internal/models"
)

// Every method takes context.Context first: all of these hit Postgres,
// and a cancelled request must cancel its query.
//
// Lookups return nil, nil when the row does not exist. Callers decide
// whether absence is an error.

// ErrChannelExists is returned by ChannelRepository.Create when the
// (type, id) pair is already taken.
var ErrChannelExists = errors.New("channel already exists")

// ErrAmbiguousMatch is returned by MatchRepository.GetActive when more
// than one active match links the pair. Chat is only allowed on exactly
// one, so callers treat it as "not matched".
var ErrAmbiguousMatch = errors.New("more than one active match for pair")

// ErrEmailTaken is returned by UserRepository.Create on a duplicate email.
var ErrEmailTaken = errors.New("email already registered")

// UserRepository handles app accounts.
type UserRepository interface {
	// Create inserts a user and returns it with ID and CreatedAt populated.
	Create(ctx context.Context, email, fullName, avatarURL, passwordHash string) (*models.User, error)

	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail is used for login.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// MatchRepository reads the match table. Matches are written by the
// discovery flow, which lives outside this service.
type MatchRepository interface {
	// GetActive returns the single active match between a and b in either
	// order. It returns nil, nil when there is none and ErrAmbiguousMatch
	// when there is more than one.
	GetActive(ctx context.Context, a, b uuid.UUID) (*models.Match, error)

	// ListActive returns every active match the user is part of, newest first.
	ListActive(ctx context.Context, userID uuid.UUID) ([]models.Match, error)
}

// ChatUserRepository stores provider-side user profiles.
type ChatUserRepository interface {
	// Upsert creates or replaces the profile.
	Upsert(ctx context.Context, u models.ChatUser) error

	GetByID(ctx context.Context, id string) (*models.ChatUser, error)
}

// ChannelRepository handles provider-side channels.
type ChannelRepository interface {
	// Create inserts a channel. Returns ErrChannelExists if (type, id) is taken.
	Create(ctx context.Context, channelType, channelID, createdByID string) (*models.Channel, error)

	Get(ctx context.Context, channelType, channelID string) (*models.Channel, error)
}

// MembershipRepository handles who belongs to which channel.
type MembershipRepository interface {
	// AddMember is idempotent.
	AddMember(ctx context.Context, channelType, channelID, userID string) error

	ListMembers(ctx context.Context, channelType, channelID string) ([]models.ChannelMember, error)

	// IsMember is checked before every watch, query, send and keystroke.
	IsMember(ctx context.Context, channelType, channelID, userID string) (bool, error)
}

// MessageRepository handles chat message persistence.
type MessageRepository interface {
	// Create persists a message under the given id.
	Create(ctx context.Context, msg models.Message) (*models.Message, error)

	// ListRecent returns at most limit of the newest messages in the
	// channel, ordered oldest first.
	ListRecent(ctx context.Context, channelType, channelID string, limit int) ([]models.Message, error)
}
