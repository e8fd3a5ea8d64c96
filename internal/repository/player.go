package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/padelbud/platform/internal/domain"
)

type playerRepo struct{}

// NewPlayerRepository returns a pgx-backed PlayerRepository.
func NewPlayerRepository() PlayerRepository {
	return &playerRepo{}
}

func (r *playerRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.Player, error) {
	var p domain.Player
	err := db.QueryRow(ctx, `
		SELECT id, match_id, buddies_state, updated_at
		FROM players WHERE id = $1`, id).
		Scan(&p.ID, &p.MatchID, &p.BuddiesState, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}
	return &p, nil
}

func (r *playerRepo) MarkSearching(ctx context.Context, db DBTX, id string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO players (id, buddies_state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET buddies_state = EXCLUDED.buddies_state, updated_at = now()`,
		id, int(domain.StateSearching),
	)
	if err != nil {
		return fmt.Errorf("mark player searching: %w", err)
	}
	return nil
}

func (r *playerRepo) AssignMatch(ctx context.Context, tx pgx.Tx, ids []string, matchID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO players (id, match_id, buddies_state, updated_at)
		SELECT unnest($1::text[]), $2, $3, now()
		ON CONFLICT (id) DO UPDATE
		SET match_id = EXCLUDED.match_id, buddies_state = EXCLUDED.buddies_state, updated_at = now()`,
		ids, matchID, int(domain.StateMatched),
	)
	if err != nil {
		return fmt.Errorf("assign match to players: %w", err)
	}
	return nil
}
