package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/padelbud/platform/internal/domain"
)

type courtRepo struct{}

// NewCourtRepository returns a pgx-backed CourtRepository.
func NewCourtRepository() CourtRepository {
	return &courtRepo{}
}

const courtColumns = `id, club_id, name, game_duration, created_at`

func (r *courtRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.Court, error) {
	row := db.QueryRow(ctx, `SELECT `+courtColumns+` FROM courts WHERE id = $1`, id)
	court, err := scanCourt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return court, err
}

func (r *courtRepo) List(ctx context.Context, db DBTX) ([]domain.Court, error) {
	return r.query(ctx, db, `SELECT `+courtColumns+` FROM courts ORDER BY id`)
}

func (r *courtRepo) ListByClub(ctx context.Context, db DBTX, clubID string) ([]domain.Court, error) {
	return r.query(ctx, db, `SELECT `+courtColumns+` FROM courts WHERE club_id = $1 ORDER BY id`, clubID)
}

func (r *courtRepo) Create(ctx context.Context, db DBTX, court *domain.Court) error {
	err := db.QueryRow(ctx, `
		INSERT INTO courts (id, club_id, name, game_duration)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		court.ID, court.ClubID, court.Name, court.GameDuration,
	).Scan(&court.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert court: %w", err)
	}
	return nil
}

func (r *courtRepo) query(ctx context.Context, db DBTX, sql string, args ...interface{}) ([]domain.Court, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list courts: %w", err)
	}
	defer rows.Close()

	var courts []domain.Court
	for rows.Next() {
		c, err := scanCourt(rows)
		if err != nil {
			return nil, err
		}
		courts = append(courts, *c)
	}
	return courts, rows.Err()
}

func scanCourt(row pgx.Row) (*domain.Court, error) {
	var c domain.Court
	var duration *int
	if err := row.Scan(&c.ID, &c.ClubID, &c.Name, &duration, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan court: %w", err)
	}
	if duration != nil {
		c.GameDuration = *duration
	}
	return &c, nil
}
