package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/matchline/internal/models"
	"github.com/lalith-99/matchline/internal/repository"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Create inserts a new user row. Postgres generates the UUID and timestamp.
func (s *UserStore) Create(ctx context.Context, email, fullName, avatarURL, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (email, full_name, avatar_url, password_hash, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, email, full_name, avatar_url, password_hash, created_at`

	var u models.User
	err := s.pool.QueryRow(ctx, query, email, fullName, avatarURL, passwordHash).Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.AvatarURL,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, email, full_name, avatar_url, password_hash, created_at
		FROM users
		WHERE id = $1`

	return s.getOne(ctx, "get user", query, userID)
}

// GetByEmail looks up a user by email. Used for login.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, full_name, avatar_url, password_hash, created_at
		FROM users
		WHERE email = $1`

	return s.getOne(ctx, "get user by email", query, email)
}

func (s *UserStore) getOne(ctx context.Context, op, query string, arg any) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.AvatarURL,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}
