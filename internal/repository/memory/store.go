// Package memory implements the repository interfaces in process. It
// backs single-node development runs (STORE=memory) and tests that need
// real repository semantics without Postgres.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/matchline/internal/models"
	"github.com/lalith-99/matchline/internal/repository"
)

type channelKey struct{ typ, id string }

// Store holds every table. Use the accessor methods to get a value
// satisfying each repository interface.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]models.User
	matches  []models.Match
	chatUser map[string]models.ChatUser
	channels map[channelKey]models.Channel
	members  map[channelKey][]string
	messages map[channelKey][]models.Message
	now      func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]models.User),
		chatUser: make(map[string]models.ChatUser),
		channels: make(map[channelKey]models.Channel),
		members:  make(map[channelKey][]string),
		messages: make(map[channelKey][]models.Message),
		now:      time.Now,
	}
}

func (s *Store) Users() repository.UserRepository             { return userStore{s} }
func (s *Store) Matches() repository.MatchRepository          { return matchStore{s} }
func (s *Store) ChatUsers() repository.ChatUserRepository     { return chatUserStore{s} }
func (s *Store) Channels() repository.ChannelRepository       { return channelStore{s} }
func (s *Store) Memberships() repository.MembershipRepository { return membershipStore{s} }
func (s *Store) Messages() repository.MessageRepository       { return messageStore{s} }

// AddMatch records an active match. Matches have no write path in the
// service itself. Unlike the Postgres schema it does not refuse a second
// active match for the same pair, so legacy duplicates can be modelled.
func (s *Store) AddMatch(a, b uuid.UUID) models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := models.Match{ID: uuid.New(), User1ID: a, User2ID: b, IsActive: true, CreatedAt: s.now()}
	s.matches = append(s.matches, m)
	return m
}

// Unmatch deactivates every match between a and b.
func (s *Store) Unmatch(a, b uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.matches {
		if pairOf(m, a, b) {
			s.matches[i].IsActive = false
		}
	}
}

func pairOf(m models.Match, a, b uuid.UUID) bool {
	return (m.User1ID == a && m.User2ID == b) || (m.User1ID == b && m.User2ID == a)
}

type userStore struct{ s *Store }

func (r userStore) Create(_ context.Context, email, fullName, avatarURL, passwordHash string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return nil, repository.ErrEmailTaken
		}
	}
	u := models.User{
		ID:           uuid.New(),
		Email:        email,
		FullName:     fullName,
		AvatarURL:    avatarURL,
		PasswordHash: passwordHash,
		CreatedAt:    r.s.now(),
	}
	r.s.users[u.ID] = u
	return &u, nil
}

func (r userStore) GetByID(_ context.Context, userID uuid.UUID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r userStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

type matchStore struct{ s *Store }

func (r matchStore) GetActive(_ context.Context, a, b uuid.UUID) (*models.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *models.Match
	for _, m := range r.s.matches {
		if !m.IsActive || !pairOf(m, a, b) {
			continue
		}
		if found != nil {
			return nil, repository.ErrAmbiguousMatch
		}
		found = &m
	}
	return found, nil
}

func (r matchStore) ListActive(_ context.Context, userID uuid.UUID) ([]models.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Match, 0)
	for i := len(r.s.matches) - 1; i >= 0; i-- {
		m := r.s.matches[i]
		if m.IsActive && (m.User1ID == userID || m.User2ID == userID) {
			out = append(out, m)
		}
	}
	return out, nil
}

type chatUserStore struct{ s *Store }

func (r chatUserStore) Upsert(_ context.Context, u models.ChatUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.UpdatedAt = r.s.now()
	r.s.chatUser[u.ID] = u
	return nil
}

func (r chatUserStore) GetByID(_ context.Context, id string) (*models.ChatUser, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.chatUser[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type channelStore struct{ s *Store }

func (r channelStore) Create(_ context.Context, channelType, channelID, createdByID string) (*models.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := channelKey{channelType, channelID}
	if _, ok := r.s.channels[k]; ok {
		return nil, repository.ErrChannelExists
	}
	ch := models.Channel{Type: channelType, ID: channelID, CreatedByID: createdByID, CreatedAt: r.s.now()}
	r.s.channels[k] = ch
	return &ch, nil
}

func (r channelStore) Get(_ context.Context, channelType, channelID string) (*models.Channel, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ch, ok := r.s.channels[channelKey{channelType, channelID}]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

type membershipStore struct{ s *Store }

func (r membershipStore) AddMember(_ context.Context, channelType, channelID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := channelKey{channelType, channelID}
	if !slices.Contains(r.s.members[k], userID) {
		r.s.members[k] = append(r.s.members[k], userID)
	}
	return nil
}

func (r membershipStore) ListMembers(_ context.Context, channelType, channelID string) ([]models.ChannelMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.ChannelMember, 0)
	for _, id := range r.s.members[channelKey{channelType, channelID}] {
		out = append(out, models.ChannelMember{ChannelType: channelType, ChannelID: channelID, UserID: id})
	}
	return out, nil
}

func (r membershipStore) IsMember(_ context.Context, channelType, channelID, userID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return slices.Contains(r.s.members[channelKey{channelType, channelID}], userID), nil
}

type messageStore struct{ s *Store }

func (r messageStore) Create(_ context.Context, msg models.Message) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg.CreatedAt = r.s.now()
	k := channelKey{msg.ChannelType, msg.ChannelID}
	r.s.messages[k] = append(r.s.messages[k], msg)
	return &msg, nil
}

func (r messageStore) ListRecent(_ context.Context, channelType, channelID string, limit int) ([]models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := r.s.messages[channelKey{channelType, channelID}]
	if limit < len(all) {
		all = all[len(all)-limit:]
	}
	return slices.Clone(all), nil
}
