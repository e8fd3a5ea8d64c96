// Package search retrieves matchmaking candidates: nearby clubs, their
// courts, an open slot near a desired instant and pending partner requests.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/geo"
	"github.com/padelbud/platform/internal/store"
)

const (
	DefaultNearbyLimit = 3
	DefaultWindow      = 2 * time.Hour
)

// Service answers candidate queries against the store.
type Service struct {
	clubs       store.ClubStore
	courts      store.CourtStore
	slots       store.SlotStore
	requests    store.RequestStore
	nearbyLimit int
	window      time.Duration
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithNearbyLimit sets how many clubs NearbyClubs returns.
func WithNearbyLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.nearbyLimit = n
		}
	}
}

// WithWindow sets the half-width of the matching window.
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// NewService creates a search service. clubs is usually a cache.ClubDirectory.
func NewService(clubs store.ClubStore, courts store.CourtStore, slots store.SlotStore, requests store.RequestStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		clubs:       clubs,
		courts:      courts,
		slots:       slots,
		requests:    requests,
		nearbyLimit: DefaultNearbyLimit,
		window:      DefaultWindow,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the inclusive matching window around at.
func (s *Service) Window(at time.Time) domain.Window {
	return domain.WindowAround(at, s.window)
}

// NearbyClubs ranks every club by distance from point and returns the closest
// identities. Clubs without a usable location rank last.
func (s *Service) NearbyClubs(ctx context.Context, point *domain.Point) ([]string, error) {
	clubs, err := s.clubs.ListClubs(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]geo.Candidate, len(clubs))
	for i, c := range clubs {
		candidates[i] = geo.Candidate{ID: c.ID, Location: c.Location}
	}
	return geo.Closest(point, candidates, s.nearbyLimit), nil
}

// CourtsOfClub returns the club's courts in store order.
func (s *Service) CourtsOfClub(ctx context.Context, clubID string) ([]domain.Court, error) {
	return s.courts.CourtsOfClub(ctx, clubID)
}

// PendingRequests returns available requests near clubID whose desired
// instant lies in the window around at.
func (s *Service) PendingRequests(ctx context.Context, clubID string, at time.Time) ([]domain.SearchRequest, error) {
	return s.requests.PendingSearchRequests(ctx, clubID, s.Window(at))
}

// MatchingSlot returns the first available slot of the court, in store order,
// that starts inside the window around at. It is the first hit, not the
// closest in time. Returns nil when none qualifies.
func (s *Service) MatchingSlot(ctx context.Context, courtID string, at time.Time) (*domain.TimeSlot, error) {
	slots, err := s.slots.AvailableSlots(ctx, courtID)
	if err != nil {
		return nil, err
	}
	window := s.Window(at)
	for i := range slots {
		if slots[i].Available && window.Contains(slots[i].Start) {
			return &slots[i], nil
		}
	}
	return nil, nil
}
