package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/padelbud/platform/internal/domain"
)

type timeSlotRepo struct{}

// NewTimeSlotRepository returns a pgx-backed TimeSlotRepository.
func NewTimeSlotRepository() TimeSlotRepository {
	return &timeSlotRepo{}
}

const slotColumns = `id, court_id, start_at, end_at, available, buddies, price_cents`

func (r *timeSlotRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.TimeSlot, error) {
	row := db.QueryRow(ctx, `SELECT `+slotColumns+` FROM time_slots WHERE id = $1`, id)
	slot, err := scanSlot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return slot, err
}

// InsertIfAbsent relies on the primary key so concurrent provisioning runs
// for the same court cannot create duplicates.
func (r *timeSlotRepo) InsertIfAbsent(ctx context.Context, db DBTX, slot *domain.TimeSlot) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO time_slots (id, court_id, start_at, end_at, available, buddies, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING`,
		slot.ID, slot.CourtID, slot.Start, slot.End, slot.Available, slot.Buddies, slot.PriceCents,
	)
	if err != nil {
		return false, fmt.Errorf("insert time slot %s: %w", slot.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *timeSlotRepo) ListAvailableByCourt(ctx context.Context, db DBTX, courtID string) ([]domain.TimeSlot, error) {
	rows, err := db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE court_id = $1 AND available = true
		ORDER BY id`, courtID)
	if err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

func (r *timeSlotRepo) Consume(ctx context.Context, tx pgx.Tx, id string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE time_slots SET available = false, buddies = buddies + 1
		WHERE id = $1 AND available = true`, id)
	if err != nil {
		return false, fmt.Errorf("consume time slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanSlot(row pgx.Row) (*domain.TimeSlot, error) {
	var s domain.TimeSlot
	err := row.Scan(&s.ID, &s.CourtID, &s.Start, &s.End, &s.Available, &s.Buddies, &s.PriceCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan time slot: %w", err)
	}
	return &s, nil
}
