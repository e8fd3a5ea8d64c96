// Package store is the persistence boundary every engine reads and writes through.
// Lookups return (nil, nil) when the entity does not exist.
package store

import (
	"context"
	"time"

	"github.com/padelbud/platform/internal/domain"
)

// ClubStore reads and creates clubs.
type ClubStore interface {
	ListClubs(ctx context.Context) ([]domain.Club, error)
	GetClub(ctx context.Context, id string) (*domain.Club, error)
	CreateClub(ctx context.Context, club *domain.Club) error
}

// CourtStore reads and creates courts. CreateCourt also records a court.created event.
type CourtStore interface {
	GetCourt(ctx context.Context, id string) (*domain.Court, error)
	ListCourts(ctx context.Context) ([]domain.Court, error)
	CourtsOfClub(ctx context.Context, clubID string) ([]domain.Court, error)
	CreateCourt(ctx context.Context, court *domain.Court) error
}

// SlotStore holds the slot inventory.
type SlotStore interface {
	GetTimeSlot(ctx context.Context, id string) (*domain.TimeSlot, error)
	CreateTimeSlotIfAbsent(ctx context.Context, slot *domain.TimeSlot) (bool, error)
	AvailableSlots(ctx context.Context, courtID string) ([]domain.TimeSlot, error)
}

// RequestStore holds search requests. CreateSearchRequest also records a
// search_request.created event and marks the player as searching.
type RequestStore interface {
	GetSearchRequest(ctx context.Context, id string) (*domain.SearchRequest, error)
	CreateSearchRequest(ctx context.Context, req *domain.SearchRequest) error
	EnrichSearchRequest(ctx context.Context, id string, closeClubs []string) (bool, error)
	PendingSearchRequests(ctx context.Context, clubID string, window domain.Window) ([]domain.SearchRequest, error)
}

// MatchStore reads matches and players and applies allocations.
type MatchStore interface {
	GetMatch(ctx context.Context, id string) (*domain.Match, error)
	GetPlayer(ctx context.Context, id string) (*domain.Player, error)

	// ApplyAllocation performs every write of a match decision atomically:
	// match insert, request absorption, player assignment, slot consumption
	// and the match.created event. If the slot or any request is no longer
	// available it fails with a CONFLICT AppError and changes nothing.
	ApplyAllocation(ctx context.Context, alloc domain.Allocation) (*domain.Match, error)
}

// Store is the full persistence surface.
type Store interface {
	ClubStore
	CourtStore
	SlotStore
	RequestStore
	MatchStore
}

// Pinger is implemented by stores that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

func now() time.Time { return time.Now().UTC() }
