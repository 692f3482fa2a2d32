package postgres

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/matchline/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// Create persists msg. The provider assigns msg.ID before calling, so the
// id it acknowledges to the sender is the id every watcher sees.
func (s *MessageStore) Create(ctx context.Context, msg models.Message) (*models.Message, error) {
	query := `
		INSERT INTO chat_messages (id, channel_type, channel_id, user_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, channel_type, channel_id, user_id, text, created_at`

	var out models.Message
	err := s.pool.QueryRow(ctx, query,
		msg.ID, msg.ChannelType, msg.ChannelID, msg.UserID, msg.Text,
	).Scan(
		&out.ID,
		&out.ChannelType,
		&out.ChannelID,
		&out.UserID,
		&out.Text,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &out, nil
}

func (s *MessageStore) ListRecent(ctx context.Context, channelType, channelID string, limit int) ([]models.Message, error) {
	// Newest N first, then reversed below so the caller gets them oldest
	// first. Sorting ascending with OFFSET would need a COUNT first.
	//
	// Why the seq tie-breaker?
	//   - created_at is now() at insert, which is the transaction start
	//     time with microsecond precision. Two messages sent in the same
	//     microsecond, or inside one transaction, get equal timestamps.
	//   - Without a second key Postgres may return equal rows in any
	//     order, and may pick a different order on the next query. The
	//     client would see history reshuffle on reopen.
	//   - id is a uuid and says nothing about order. seq is a bigserial
	//     that only grows, so it settles ties the way they happened.
	query := `
		SELECT id, channel_type, channel_id, user_id, text, created_at
		FROM chat_messages
		WHERE channel_type = $1 AND channel_id = $2
		ORDER BY created_at DESC, seq DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, channelType, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ChannelType,
			&msg.ChannelID,
			&msg.UserID,
			&msg.Text,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}
