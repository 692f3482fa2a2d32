package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/matchline/internal/models"
	"github.com/lalith-99/matchline/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches_Unordered(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	s.AddMatch(a, b)

	m, err := s.Matches().GetActive(ctx, b, a)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, b, m.Counterpart(a))

	m, err = s.Matches().GetActive(ctx, a, c)
	require.NoError(t, err)
	assert.Nil(t, m)

	s.Unmatch(b, a)
	m, err = s.Matches().GetActive(ctx, a, b)
	require.NoError(t, err)
	assert.Nil(t, m)

	list, err := s.Matches().ListActive(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMatches_DuplicateActivePairIsAmbiguous(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	s.AddMatch(a, b)
	s.AddMatch(b, a)

	m, err := s.Matches().GetActive(ctx, a, b)
	assert.ErrorIs(t, err, repository.ErrAmbiguousMatch)
	assert.Nil(t, m)

	// An inactive duplicate does not count.
	s.Unmatch(a, b)
	s.AddMatch(a, b)
	m, err = s.Matches().GetActive(ctx, b, a)
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestUsers_EmailUnique(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, err := s.Users().Create(ctx, "Ana@example.com", "Ana", "", "hash")
	require.NoError(t, err)

	_, err = s.Users().Create(ctx, "ana@example.com", "Other", "", "hash")
	assert.ErrorIs(t, err, repository.ErrEmailTaken)

	got, err := s.Users().GetByEmail(ctx, "ana@EXAMPLE.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
}

func TestChannels_CreateTwice(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Channels().Create(ctx, "messaging", "match_1", "u1")
	require.NoError(t, err)
	_, err = s.Channels().Create(ctx, "messaging", "match_1", "u2")
	assert.ErrorIs(t, err, repository.ErrChannelExists)
}

func TestMessages_ListRecentOldestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := range 4 {
		_, err := s.Messages().Create(ctx, models.Message{
			ID: fmt.Sprint(i), ChannelType: "messaging", ChannelID: "c", Text: fmt.Sprint(i),
		})
		require.NoError(t, err)
	}

	got, err := s.Messages().ListRecent(ctx, "messaging", "c", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}
