package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/repository"
)

// PostgreSQL error codes that mean another writer won the race.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// PostgresStore implements Store on top of the pgx repositories.
type PostgresStore struct {
	pool     *pgxpool.Pool
	clubs    repository.ClubRepository
	courts   repository.CourtRepository
	slots    repository.TimeSlotRepository
	requests repository.SearchRequestRepository
	matches  repository.MatchRepository
	players  repository.PlayerRepository
	outbox   repository.OutboxRepository
	logger   *slog.Logger
}

// NewPostgresStore wires the pgx repositories around a pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		pool:     pool,
		clubs:    repository.NewClubRepository(),
		courts:   repository.NewCourtRepository(),
		slots:    repository.NewTimeSlotRepository(),
		requests: repository.NewSearchRequestRepository(),
		matches:  repository.NewMatchRepository(),
		players:  repository.NewPlayerRepository(),
		outbox:   repository.NewOutboxRepository(),
		logger:   logger,
	}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) ListClubs(ctx context.Context) ([]domain.Club, error) {
	return s.clubs.List(ctx, s.pool)
}

func (s *PostgresStore) GetClub(ctx context.Context, id string) (*domain.Club, error) {
	return s.clubs.FindByID(ctx, s.pool, id)
}

func (s *PostgresStore) CreateClub(ctx context.Context, club *domain.Club) error {
	return classify(s.clubs.Create(ctx, s.pool, club), "club "+club.ID+" already exists")
}

func (s *PostgresStore) GetCourt(ctx context.Context, id string) (*domain.Court, error) {
	return s.courts.FindByID(ctx, s.pool, id)
}

func (s *PostgresStore) ListCourts(ctx context.Context) ([]domain.Court, error) {
	return s.courts.List(ctx, s.pool)
}

func (s *PostgresStore) CourtsOfClub(ctx context.Context, clubID string) ([]domain.Court, error) {
	return s.courts.ListByClub(ctx, s.pool, clubID)
}

// CreateCourt stores the court and its court.created event in one transaction.
func (s *PostgresStore) CreateCourt(ctx context.Context, court *domain.Court) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	club, err := s.clubs.FindByID(ctx, tx, court.ClubID)
	if err != nil {
		return err
	}
	if club == nil {
		return domain.ErrNotFound("club", court.ClubID)
	}
	if err := s.courts.Create(ctx, tx, court); err != nil {
		return classify(err, "court "+court.ID+" already exists")
	}
	if err := s.outbox.Insert(ctx, tx, domain.NewCourtCreatedEvent(court)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTimeSlot(ctx context.Context, id string) (*domain.TimeSlot, error) {
	return s.slots.FindByID(ctx, s.pool, id)
}

func (s *PostgresStore) CreateTimeSlotIfAbsent(ctx context.Context, slot *domain.TimeSlot) (bool, error) {
	return s.slots.InsertIfAbsent(ctx, s.pool, slot)
}

func (s *PostgresStore) AvailableSlots(ctx context.Context, courtID string) ([]domain.TimeSlot, error) {
	return s.slots.ListAvailableByCourt(ctx, s.pool, courtID)
}

func (s *PostgresStore) GetSearchRequest(ctx context.Context, id string) (*domain.SearchRequest, error) {
	return s.requests.FindByID(ctx, s.pool, id)
}

// CreateSearchRequest stores the request, marks its player searching and
// records the search_request.created event in one transaction.
func (s *PostgresStore) CreateSearchRequest(ctx context.Context, req *domain.SearchRequest) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.requests.Create(ctx, tx, req); err != nil {
		return classify(err, "search request "+req.ID+" already exists")
	}
	if err := s.players.MarkSearching(ctx, tx, req.UserID); err != nil {
		return err
	}
	if err := s.outbox.Insert(ctx, tx, domain.NewSearchRequestCreatedEvent(req)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) EnrichSearchRequest(ctx context.Context, id string, closeClubs []string) (bool, error) {
	return s.requests.Enrich(ctx, s.pool, id, closeClubs)
}

func (s *PostgresStore) PendingSearchRequests(ctx context.Context, clubID string, window domain.Window) ([]domain.SearchRequest, error) {
	return s.requests.ListPending(ctx, s.pool, clubID, window.From, window.To)
}

func (s *PostgresStore) GetMatch(ctx context.Context, id string) (*domain.Match, error) {
	return s.matches.FindByID(ctx, s.pool, id)
}

func (s *PostgresStore) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	return s.players.FindByID(ctx, s.pool, id)
}

// ApplyAllocation runs every write of a match decision in one transaction.
// The slot row is locked first so concurrent commits for the same slot queue
// behind each other; the loser then sees available = false and rolls back.
func (s *PostgresStore) ApplyAllocation(ctx context.Context, alloc domain.Allocation) (*domain.Match, error) {
	if err := alloc.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	consumed, err := s.slots.Consume(ctx, tx, alloc.TimeSlotID)
	if err != nil {
		return nil, classify(err, "time slot contended")
	}
	if !consumed {
		return nil, domain.ErrConflict("time slot " + alloc.TimeSlotID + " is no longer available")
	}

	absorbed, err := s.requests.Absorb(ctx, tx, alloc.RequestIDs())
	if err != nil {
		return nil, classify(err, "search requests contended")
	}
	if absorbed != int64(len(alloc.Participants)) {
		return nil, domain.ErrConflict(fmt.Sprintf("only %d of %d search requests still available",
			absorbed, len(alloc.Participants)))
	}

	match := &domain.Match{
		ID:         alloc.MatchID,
		UserIDs:    alloc.UserIDs(),
		CourtID:    alloc.CourtID,
		TimeSlotID: alloc.TimeSlotID,
		DateTime:   alloc.DateTime,
	}
	if err := s.matches.Insert(ctx, tx, match); err != nil {
		return nil, classify(err, "match already recorded for time slot "+alloc.TimeSlotID)
	}
	if err := s.players.AssignMatch(ctx, tx, match.UserIDs, match.ID); err != nil {
		return nil, classify(err, "players contended")
	}
	if err := s.outbox.Insert(ctx, tx, domain.NewMatchCreatedEvent(match)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(err, "allocation commit contended")
	}
	return match, nil
}

// classify turns lost-race database errors into CONFLICT and leaves the rest wrapped as-is.
func classify(err error, conflictMsg string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return &domain.AppError{Code: domain.CodeConflict, Message: conflictMsg, Status: 409, Cause: err}
		}
	}
	return err
}
