package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/padelbud/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Lookups return (nil, nil) when the row does not exist.

// ClubRepository provides access to clubs.
type ClubRepository interface {
	// FindByID returns a club by ID.
	FindByID(ctx context.Context, db DBTX, id string) (*domain.Club, error)

	// List returns every club ordered by ID.
	List(ctx context.Context, db DBTX) ([]domain.Club, error)

	// Create inserts a new club.
	Create(ctx context.Context, db DBTX, club *domain.Club) error
}

// CourtRepository provides access to courts.
type CourtRepository interface {
	// FindByID returns a court by ID.
	FindByID(ctx context.Context, db DBTX, id string) (*domain.Court, error)

	// List returns every court ordered by ID.
	List(ctx context.Context, db DBTX) ([]domain.Court, error)

	// ListByClub returns the courts of a club ordered by ID.
	ListByClub(ctx context.Context, db DBTX, clubID string) ([]domain.Court, error)

	// Create inserts a new court.
	Create(ctx context.Context, db DBTX, court *domain.Court) error
}

// TimeSlotRepository provides access to time_slots.
type TimeSlotRepository interface {
	// FindByID returns a slot by ID.
	FindByID(ctx context.Context, db DBTX, id string) (*domain.TimeSlot, error)

	// InsertIfAbsent inserts the slot unless its ID already exists. Reports whether a row was written.
	InsertIfAbsent(ctx context.Context, db DBTX, slot *domain.TimeSlot) (bool, error)

	// ListAvailableByCourt returns available slots of a court ordered by ID.
	ListAvailableByCourt(ctx context.Context, db DBTX, courtID string) ([]domain.TimeSlot, error)

	// Consume flips an available slot to unavailable and links one match.
	// Reports false when the slot was missing or already consumed.
	Consume(ctx context.Context, tx pgx.Tx, id string) (bool, error)
}

// SearchRequestRepository provides access to search_requests.
type SearchRequestRepository interface {
	// FindByID returns a request by ID.
	FindByID(ctx context.Context, db DBTX, id string) (*domain.SearchRequest, error)

	// Create inserts a new request.
	Create(ctx context.Context, db DBTX, req *domain.SearchRequest) error

	// Enrich stores the nearby-club set, only while the request is still available.
	Enrich(ctx context.Context, db DBTX, id string, closeClubs []string) (bool, error)

	// ListPending returns available requests near clubID whose desired instant is in [from, to].
	ListPending(ctx context.Context, db DBTX, clubID string, from, to time.Time) ([]domain.SearchRequest, error)

	// Absorb flips the given available requests to unavailable. Returns the number of rows changed.
	Absorb(ctx context.Context, tx pgx.Tx, ids []string) (int64, error)
}

// MatchRepository provides access to matches.
type MatchRepository interface {
	// FindByID returns a match by ID.
	FindByID(ctx context.Context, db DBTX, id string) (*domain.Match, error)

	// Insert creates a match; CreatedAt is assigned by the database.
	Insert(ctx context.Context, tx pgx.Tx, match *domain.Match) error
}

// PlayerRepository provides access to players.
type PlayerRepository interface {
	// FindByID returns a player by ID.
	FindByID(ctx context.Context, db DBTX, id string) (*domain.Player, error)

	// MarkSearching upserts the player into the searching state.
	MarkSearching(ctx context.Context, db DBTX, id string) error

	// AssignMatch upserts the players as matched and links them to matchID.
	AssignMatch(ctx context.Context, tx pgx.Tx, ids []string, matchID string) error
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the state change).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events for the outbox poller, oldest first.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxDraft, error)

	// MarkPublished stamps the given events as published.
	MarkPublished(ctx context.Context, db DBTX, seqs []int64) error
}
