package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/padelbud/platform/internal/domain"
)

type clubRepo struct{}

// NewClubRepository returns a pgx-backed ClubRepository.
func NewClubRepository() ClubRepository {
	return &clubRepo{}
}

const clubColumns = `id, name, lat, lng, schedule`

func (r *clubRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.Club, error) {
	row := db.QueryRow(ctx, `SELECT `+clubColumns+` FROM clubs WHERE id = $1`, id)
	club, err := scanClub(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return club, err
}

func (r *clubRepo) List(ctx context.Context, db DBTX) ([]domain.Club, error) {
	rows, err := db.Query(ctx, `SELECT `+clubColumns+` FROM clubs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	defer rows.Close()

	var clubs []domain.Club
	for rows.Next() {
		c, err := scanClub(rows)
		if err != nil {
			return nil, err
		}
		clubs = append(clubs, *c)
	}
	return clubs, rows.Err()
}

func (r *clubRepo) Create(ctx context.Context, db DBTX, club *domain.Club) error {
	schedule, err := json.Marshal(club.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	lat, lng := club.Location.Columns()
	_, err = db.Exec(ctx, `
		INSERT INTO clubs (id, name, lat, lng, schedule)
		VALUES ($1, $2, $3, $4, $5)`,
		club.ID, club.Name, lat, lng, schedule,
	)
	if err != nil {
		return fmt.Errorf("insert club: %w", err)
	}
	return nil
}

func scanClub(row pgx.Row) (*domain.Club, error) {
	var c domain.Club
	var lat, lng *float64
	var schedule []byte
	if err := row.Scan(&c.ID, &c.Name, &lat, &lng, &schedule); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan club: %w", err)
	}
	c.Location = domain.PointFromColumns(lat, lng)
	// A malformed schedule is treated like a missing one.
	if len(schedule) > 0 {
		_ = json.Unmarshal(schedule, &c.Schedule)
	}
	return &c, nil
}
