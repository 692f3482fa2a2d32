package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Credentials is what a client needs to connect to the chat provider as
// itself.
type Credentials struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	UserImage string `json:"user_image,omitempty"`
}

// TokenIssuer hands out chat credentials for an authenticated user.
type TokenIssuer interface {
	Issue(ctx context.Context, userID uuid.UUID) (Credentials, error)
}

// TokenService mints chat tokens on the server, where the provider
// secret lives.
type TokenService struct {
	users    UserFinder
	provider Provider
	logger   *zap.Logger
}

func NewTokenService(users UserFinder, provider Provider, logger *zap.Logger) *TokenService {
	return &TokenService{users: users, provider: provider, logger: logger}
}

// Issue mints a token for userID and upserts the user's chat profile.
// A user without an account row gets ErrNotAuthenticated.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID) (Credentials, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to fetch user info", zap.Stringer("user_id", userID), zap.Error(err))
		return Credentials{}, fmt.Errorf("fetch user info: %w", err)
	}
	if u == nil {
		return Credentials{}, ErrNotAuthenticated
	}

	profile := profileOf(u)

	token, err := s.provider.MintToken(profile.ID)
	if err != nil {
		return Credentials{}, &ProviderError{Op: "mint token", Err: err}
	}

	if err := s.provider.UpsertUser(ctx, profile); err != nil {
		return Credentials{}, &ProviderError{Op: "upsert user", Err: err}
	}

	return Credentials{
		Token:     token,
		UserID:    profile.ID,
		UserName:  profile.Name,
		UserImage: profile.Image,
	}, nil
}
