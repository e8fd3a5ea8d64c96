// Package allocation applies a match decision to the store in one atomic step.
package allocation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/store"
)

// Committer turns a chosen group, court and slot into a Match.
type Committer struct {
	matches store.MatchStore
	newID   func() string
	logger  *slog.Logger
}

// NewCommitter creates a Committer that assigns random UUID match ids.
func NewCommitter(matches store.MatchStore, logger *slog.Logger) *Committer {
	return &Committer{
		matches: matches,
		newID:   func() string { return uuid.NewString() },
		logger:  logger,
	}
}

// Commit creates the match, absorbs every participant request, links the
// players and consumes the slot, all or nothing. It returns the new match id.
// A CONFLICT AppError means a concurrent commit won the slot or a
// participant; nothing was written and the caller should not retry.
func (c *Committer) Commit(ctx context.Context, group []domain.Participant, courtID string, slot domain.TimeSlot, at time.Time) (string, error) {
	alloc := domain.Allocation{
		MatchID:      c.newID(),
		Participants: group,
		CourtID:      courtID,
		TimeSlotID:   slot.ID,
		DateTime:     at,
	}
	log := c.logger.With("match_id", alloc.MatchID, "court_id", courtID, "slot_id", slot.ID)

	match, err := c.matches.ApplyAllocation(ctx, alloc)
	switch {
	case err == nil:
		log.Info("match committed", "players", match.UserIDs)
		return match.ID, nil
	case domain.IsConflict(err):
		log.Info("allocation lost a concurrent race", "error", err)
		return "", err
	default:
		log.Error("allocation failed", "error", err)
		return "", err
	}
}
