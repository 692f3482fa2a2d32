package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/matchline/internal/models"
	"github.com/lalith-99/matchline/internal/observ"
	"github.com/lalith-99/matchline/internal/repository"
	"go.uber.org/zap"
)

// MatchFinder looks up an active match for an unordered pair.
type MatchFinder interface {
	GetActive(ctx context.Context, a, b uuid.UUID) (*models.Match, error)
}

// UserFinder returns a user's display info, or nil if there is none.
type UserFinder interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// Resolver turns a (requester, counterpart) pair into a provider channel,
// creating it on first use. It refuses pairs without an active match.
type Resolver struct {
	matches   MatchFinder
	users     UserFinder
	provider  Provider
	channelID ChannelIDFunc
	logger    *zap.Logger
	metrics   *observ.Metrics
}

// NewResolver builds a Resolver. A nil channelID uses DeriveChannelID.
func NewResolver(
	matches MatchFinder,
	users UserFinder,
	provider Provider,
	channelID ChannelIDFunc,
	logger *zap.Logger,
	metrics *observ.Metrics,
) *Resolver {
	if channelID == nil {
		channelID = DeriveChannelID
	}
	return &Resolver{
		matches:   matches,
		users:     users,
		provider:  provider,
		channelID: channelID,
		logger:    logger,
		metrics:   metrics,
	}
}

// Resolve checks the match, derives the channel id, pushes both profiles
// to the provider and creates the channel if it does not exist yet.
//
// Returns ErrNotMatched (and touches nothing on the provider) when the
// pair has no active match.
func (r *Resolver) Resolve(ctx context.Context, requesterID, counterpartID uuid.UUID) (ChannelRef, error) {
	if requesterID == counterpartID {
		r.metrics.Resolution(observ.ResolutionNotMatched)
		return ChannelRef{}, ErrNotMatched
	}

	match, err := r.matches.GetActive(ctx, requesterID, counterpartID)
	if errors.Is(err, repository.ErrAmbiguousMatch) {
		r.metrics.Resolution(observ.ResolutionNotMatched)
		r.logger.Warn("refusing chat for pair with several active matches",
			zap.Stringer("requester_id", requesterID),
			zap.Stringer("counterpart_id", counterpartID),
		)
		return ChannelRef{}, ErrNotMatched
	}
	if err != nil {
		r.metrics.Resolution(observ.ResolutionError)
		return ChannelRef{}, fmt.Errorf("look up match: %w", err)
	}
	if match == nil {
		r.metrics.Resolution(observ.ResolutionNotMatched)
		return ChannelRef{}, ErrNotMatched
	}

	requester, counterpart := requesterID.String(), counterpartID.String()
	ref := ChannelRef{
		Type: ChannelTypeMessaging,
		ID:   r.channelID(requester, counterpart),
	}

	profiles := make([]Profile, 0, 2)
	for _, id := range []uuid.UUID{requesterID, counterpartID} {
		p, err := r.profile(ctx, id, id == requesterID)
		if err != nil {
			r.metrics.Resolution(observ.ResolutionError)
			return ChannelRef{}, err
		}
		profiles = append(profiles, p)
	}

	// Channel membership requires both users to exist on the provider.
	for _, p := range profiles {
		if err := r.provider.UpsertUser(ctx, p); err != nil {
			r.metrics.Resolution(observ.ResolutionError)
			return ChannelRef{}, &ProviderError{Op: "upsert user", Err: err}
		}
	}

	err = r.provider.CreateChannel(ctx, ChannelSpec{
		Type:        ref.Type,
		ID:          ref.ID,
		Members:     []string{requester, counterpart},
		CreatedByID: requester,
	})
	switch {
	case err == nil:
		r.metrics.Resolution(observ.ResolutionCreated)
		r.logger.Info("channel created",
			zap.String("channel_id", ref.ID),
			zap.String("created_by", requester),
		)
	case errors.Is(err, ErrChannelExists):
		r.metrics.Resolution(observ.ResolutionExisting)
		r.logger.Debug("channel already exists", zap.String("channel_id", ref.ID))
	default:
		r.metrics.Resolution(observ.ResolutionError)
		r.logger.Error("failed to create channel",
			zap.String("channel_id", ref.ID),
			zap.Error(err),
		)
		return ChannelRef{}, &ProviderError{Op: "create channel", Err: err}
	}

	return ref, nil
}

func (r *Resolver) profile(ctx context.Context, userID uuid.UUID, isRequester bool) (Profile, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	if u == nil {
		if isRequester {
			return Profile{}, ErrNotAuthenticated
		}
		return Profile{}, fmt.Errorf("fetch user %s: %w", userID, ErrUserNotFound)
	}
	return profileOf(u), nil
}

func profileOf(u *models.User) Profile {
	return Profile{ID: u.ID.String(), Name: u.FullName, Image: u.AvatarURL}
}
