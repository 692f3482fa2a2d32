package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account on the dating app.
//
// FullName and AvatarURL are the display info shown next to chat
// messages and pushed to the chat provider before a channel is created.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Match is a mutual pairing between two users.
//
// User1ID and User2ID are unordered: a lookup for (A, B) must find a row
// stored as (B, A). Only an active match authorizes chat.
type Match struct {
	ID        uuid.UUID `json:"id"`
	User1ID   uuid.UUID `json:"user1_id"`
	User2ID   uuid.UUID `json:"user2_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Counterpart returns the other side of the match as seen by userID.
func (m Match) Counterpart(userID uuid.UUID) uuid.UUID {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// ChatUser is the profile the chat provider knows about. IDs are opaque
// strings on the provider side.
type ChatUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Channel is a provider-side conversation, addressed by (Type, ID).
type Channel struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	CreatedByID string    `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChannelMember is the join table between channels and chat users.
type ChannelMember struct {
	ChannelType string `json:"channel_type"`
	ChannelID   string `json:"channel_id"`
	UserID      string `json:"user_id"`
}

// Message is a single stored chat message. ID is assigned by the
// provider when the message is persisted and is what clients dedupe on.
type Message struct {
	ID          string    `json:"id"`
	ChannelType string    `json:"channel_type"`
	ChannelID   string    `json:"channel_id"`
	UserID      string    `json:"user_id"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}
