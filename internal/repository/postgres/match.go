package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/matchline/internal/models"
	"github.com/lalith-99/matchline/internal/repository"
)

type MatchStore struct {
	pool *pgxpool.Pool
}

func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

// GetActive looks up the active match for an unordered pair.
//
// Why the OR on both column orders?
//   - The discovery flow writes (user1_id, user2_id) in whichever order
//     the second like arrived. "Ana matched Ben" may be stored as
//     (ben, ana). Asking for (ana, ben) must still find it.
//   - Both halves hit the partial indexes on user1_id / user2_id, so the
//     planner does a BitmapOr instead of a table scan.
//
// Why LIMIT 2 and not LIMIT 1?
//   - Chat is allowed only when exactly one active match exists. LIMIT 1
//     would silently pick one of two duplicate rows; fetching two lets us
//     see the duplicate and refuse with ErrAmbiguousMatch.
//   - The partial unique index in schema.sql stops new duplicates, but
//     rows written before it existed can still be there.
func (s *MatchStore) GetActive(ctx context.Context, a, b uuid.UUID) (*models.Match, error) {
	query := `
		SELECT id, user1_id, user2_id, is_active, created_at
		FROM matches
		WHERE is_active
		  AND ((user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1))
		LIMIT 2`

	rows, err := s.pool.Query(ctx, query, a, b)
	if err != nil {
		return nil, fmt.Errorf("get active match: %w", err)
	}
	matches, err := pgx.CollectRows(rows, scanMatch)
	if err != nil {
		return nil, fmt.Errorf("scan match: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	default:
		return nil, repository.ErrAmbiguousMatch
	}
}

func scanMatch(row pgx.CollectableRow) (models.Match, error) {
	var m models.Match
	err := row.Scan(&m.ID, &m.User1ID, &m.User2ID, &m.IsActive, &m.CreatedAt)
	return m, err
}

func (s *MatchStore) ListActive(ctx context.Context, userID uuid.UUID) ([]models.Match, error) {
	query := `
		SELECT id, user1_id, user2_id, is_active, created_at
		FROM matches
		WHERE is_active AND (user1_id = $1 OR user2_id = $1)
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.ID, &m.User1ID, &m.User2ID, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}

	return matches, nil
}
