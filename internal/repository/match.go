package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/padelbud/platform/internal/domain"
)

type matchRepo struct{}

// NewMatchRepository returns a pgx-backed MatchRepository.
func NewMatchRepository() MatchRepository {
	return &matchRepo{}
}

func (r *matchRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.Match, error) {
	var m domain.Match
	err := db.QueryRow(ctx, `
		SELECT id, user_ids, court_id, time_slot_id, date_time, created_at
		FROM matches WHERE id = $1`, id).
		Scan(&m.ID, &m.UserIDs, &m.CourtID, &m.TimeSlotID, &m.DateTime, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan match: %w", err)
	}
	return &m, nil
}

func (r *matchRepo) Insert(ctx context.Context, tx pgx.Tx, m *domain.Match) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO matches (id, user_ids, court_id, time_slot_id, date_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		m.ID, m.UserIDs, m.CourtID, m.TimeSlotID, m.DateTime,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}
