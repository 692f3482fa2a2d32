package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/matchline/internal/models"
)

type MembershipStore struct {
	pool *pgxpool.Pool
}

func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

func (s *MembershipStore) AddMember(ctx context.Context, channelType, channelID, userID string) error {
	// ON CONFLICT DO NOTHING: re-adding an existing member is a no-op
	// instead of a primary key violation. Why?
	//   - Hub.CreateChannel writes the channel row and the member rows
	//     separately. When a resolve dies halfway, the next resolve for the
	//     same pair re-adds members, and must not fail on the ones that
	//     made it the first time.
	//   - Two users resolving the same pair at once race on these inserts.
	//     Both should succeed.
	query := `
		INSERT INTO chat_channel_members (channel_type, channel_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_type, channel_id, user_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, channelType, channelID, userID)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *MembershipStore) ListMembers(ctx context.Context, channelType, channelID string) ([]models.ChannelMember, error) {
	query := `
		SELECT channel_type, channel_id, user_id
		FROM chat_channel_members
		WHERE channel_type = $1 AND channel_id = $2
		ORDER BY user_id`

	rows, err := s.pool.Query(ctx, query, channelType, channelID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.ChannelMember, 0)
	for rows.Next() {
		var m models.ChannelMember
		if err := rows.Scan(&m.ChannelType, &m.ChannelID, &m.UserID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}

func (s *MembershipStore) IsMember(ctx context.Context, channelType, channelID, userID string) (bool, error) {
	// Why SELECT EXISTS and not SELECT COUNT(*) with count > 0?
	//   - COUNT has to visit every matching row. EXISTS stops at the first.
	//   - This runs before every watch, history query, send and keystroke,
	//     so it is the hottest query in the service.
	query := `
		SELECT EXISTS (
			SELECT 1 FROM chat_channel_members
			WHERE channel_type = $1 AND channel_id = $2 AND user_id = $3
		)`

	var exists bool
	err := s.pool.QueryRow(ctx, query, channelType, channelID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}
