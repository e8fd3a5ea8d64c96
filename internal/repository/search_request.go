package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/padelbud/platform/internal/domain"
)

type searchRequestRepo struct{}

// NewSearchRequestRepository returns a pgx-backed SearchRequestRepository.
func NewSearchRequestRepository() SearchRequestRepository {
	return &searchRequestRepo{}
}

const requestColumns = `id, user_id, lat, lng, date_time, available, close_clubs, created_at`

func (r *searchRequestRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.SearchRequest, error) {
	row := db.QueryRow(ctx, `SELECT `+requestColumns+` FROM search_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

func (r *searchRequestRepo) Create(ctx context.Context, db DBTX, req *domain.SearchRequest) error {
	lat, lng := req.Location.Columns()
	err := db.QueryRow(ctx, `
		INSERT INTO search_requests (id, user_id, lat, lng, date_time, available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		req.ID, req.UserID, lat, lng, req.DateTime, req.Available,
	).Scan(&req.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert search request: %w", err)
	}
	return nil
}

// Enrich never resurrects a request that a concurrent commit already absorbed.
func (r *searchRequestRepo) Enrich(ctx context.Context, db DBTX, id string, closeClubs []string) (bool, error) {
	if closeClubs == nil {
		closeClubs = []string{}
	}
	tag, err := db.Exec(ctx, `
		UPDATE search_requests SET close_clubs = $2, available = true
		WHERE id = $1 AND available = true`, id, closeClubs)
	if err != nil {
		return false, fmt.Errorf("enrich search request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *searchRequestRepo) ListPending(ctx context.Context, db DBTX, clubID string, from, to time.Time) ([]domain.SearchRequest, error) {
	rows, err := db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM search_requests
		WHERE date_time >= $2 AND date_time <= $3
		  AND close_clubs @> ARRAY[$1]::text[]
		  AND available = true
		ORDER BY date_time, id`, clubID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list pending search requests: %w", err)
	}
	defer rows.Close()

	var out []domain.SearchRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func (r *searchRequestRepo) Absorb(ctx context.Context, tx pgx.Tx, ids []string) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE search_requests SET available = false
		WHERE id = ANY($1) AND available = true`, ids)
	if err != nil {
		return 0, fmt.Errorf("absorb search requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRequest(row pgx.Row) (*domain.SearchRequest, error) {
	var req domain.SearchRequest
	var lat, lng *float64
	err := row.Scan(&req.ID, &req.UserID, &lat, &lng, &req.DateTime, &req.Available, &req.CloseClubs, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan search request: %w", err)
	}
	req.Location = domain.PointFromColumns(lat, lng)
	return &req, nil
}
