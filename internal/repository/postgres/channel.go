package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/matchline/internal/models"
	"github.com/lalith-99/matchline/internal/repository"
)

type ChannelStore struct {
	pool *pgxpool.Pool
}

func NewChannelStore(pool *pgxpool.Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

// Create inserts the channel row. A plain INSERT (not ON CONFLICT) so the
// caller can tell "created" from "already there".
func (s *ChannelStore) Create(ctx context.Context, channelType, channelID, createdByID string) (*models.Channel, error) {
	query := `
		INSERT INTO chat_channels (type, id, created_by_id, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING type, id, created_by_id, created_at`

	var ch models.Channel
	err := s.pool.QueryRow(ctx, query, channelType, channelID, createdByID).Scan(
		&ch.Type,
		&ch.ID,
		&ch.CreatedByID,
		&ch.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrChannelExists
		}
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return &ch, nil
}

func (s *ChannelStore) Get(ctx context.Context, channelType, channelID string) (*models.Channel, error) {
	query := `
		SELECT type, id, created_by_id, created_at
		FROM chat_channels
		WHERE type = $1 AND id = $2`

	var ch models.Channel
	err := s.pool.QueryRow(ctx, query, channelType, channelID).Scan(
		&ch.Type,
		&ch.ID,
		&ch.CreatedByID,
		&ch.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return &ch, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
