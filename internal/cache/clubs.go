package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/store"
)

const clubListKey = "padel:clubs:all"

// ClubDirectory is a read-through cache in front of a ClubStore. The full
// club list is what every nearby-club computation reads, so it is the one
// value cached. Cache failures fall through to the store.
type ClubDirectory struct {
	store.ClubStore
	cache  Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewClubDirectory wraps clubs with a cache. A non-positive ttl disables caching.
func NewClubDirectory(clubs store.ClubStore, cache Store, ttl time.Duration, logger *slog.Logger) *ClubDirectory {
	return &ClubDirectory{ClubStore: clubs, cache: cache, ttl: ttl, logger: logger}
}

var _ store.ClubStore = (*ClubDirectory)(nil)

// ListClubs serves the club list from cache, loading it on a miss.
func (d *ClubDirectory) ListClubs(ctx context.Context) ([]domain.Club, error) {
	if d.ttl <= 0 {
		return d.ClubStore.ListClubs(ctx)
	}

	var clubs []domain.Club
	err := GetJSON(ctx, d.cache, clubListKey, &clubs)
	if err == nil {
		return clubs, nil
	}
	if !errors.Is(err, ErrMiss) {
		d.logger.Warn("club cache read failed", "error", err)
	}

	clubs, err = d.ClubStore.ListClubs(ctx)
	if err != nil {
		return nil, err
	}
	if err := SetJSON(ctx, d.cache, clubListKey, clubs, d.ttl); err != nil {
		d.logger.Warn("club cache write failed", "error", err)
	}
	return clubs, nil
}

// CreateClub stores the club and drops the cached list.
func (d *ClubDirectory) CreateClub(ctx context.Context, club *domain.Club) error {
	if err := d.ClubStore.CreateClub(ctx, club); err != nil {
		return err
	}
	if err := d.cache.Delete(ctx, clubListKey); err != nil {
		d.logger.Warn("club cache invalidation failed", "error", err)
	}
	return nil
}
