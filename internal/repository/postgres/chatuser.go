package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/matchline/internal/models"
)

type ChatUserStore struct {
	pool *pgxpool.Pool
}

func NewChatUserStore(pool *pgxpool.Pool) *ChatUserStore {
	return &ChatUserStore{pool: pool}
}

func (s *ChatUserStore) Upsert(ctx context.Context, u models.ChatUser) error {
	query := `
		INSERT INTO chat_users (id, name, image, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, image = EXCLUDED.image, updated_at = now()`

	_, err := s.pool.Exec(ctx, query, u.ID, u.Name, u.Image)
	if err != nil {
		return fmt.Errorf("upsert chat user: %w", err)
	}
	return nil
}

func (s *ChatUserStore) GetByID(ctx context.Context, id string) (*models.ChatUser, error) {
	query := `
		SELECT id, name, image, updated_at
		FROM chat_users
		WHERE id = $1`

	var u models.ChatUser
	err := s.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Image, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat user: %w", err)
	}
	return &u, nil
}
