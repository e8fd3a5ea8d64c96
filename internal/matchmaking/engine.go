// Package matchmaking turns one incoming search request into at most one
// match: nearby clubs in distance order, first court with an open slot,
// closest partners, atomic commit.
package matchmaking

import (
	"context"
	"log/slog"
	"time"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/geo"
	"github.com/padelbud/platform/internal/store"
)

// DefaultGroupSize is the number of players in a match.
const DefaultGroupSize = 4

// Status is the result of one matchmaking invocation.
type Status string

const (
	// StatusMatched means a match was committed.
	StatusMatched Status = "matched"
	// StatusExhausted means no nearby club could complete a group; the request stays available.
	StatusExhausted Status = "exhausted"
	// StatusConflict means a concurrent commit won the slot or a partner; the request stays available.
	StatusConflict Status = "conflict"
	// StatusSkipped means the request was already absorbed, typically a redelivered trigger.
	StatusSkipped Status = "skipped"
)

// Outcome describes what HandleSearchRequest did.
type Outcome struct {
	Status  Status `json:"status"`
	MatchID string `json:"match_id,omitempty"`
	ClubID  string `json:"club_id,omitempty"`
	CourtID string `json:"court_id,omitempty"`
	SlotID  string `json:"slot_id,omitempty"`
}

// Finder is the candidate search the engine drives.
type Finder interface {
	NearbyClubs(ctx context.Context, point *domain.Point) ([]string, error)
	CourtsOfClub(ctx context.Context, clubID string) ([]domain.Court, error)
	MatchingSlot(ctx context.Context, courtID string, at time.Time) (*domain.TimeSlot, error)
	PendingRequests(ctx context.Context, clubID string, at time.Time) ([]domain.SearchRequest, error)
}

// Committer applies a match decision atomically.
type Committer interface {
	Commit(ctx context.Context, group []domain.Participant, courtID string, slot domain.TimeSlot, at time.Time) (string, error)
}

// Engine runs matchmaking for single search requests. It is safe for
// concurrent use; consistency between concurrent runs comes from the
// committer's atomic apply.
type Engine struct {
	requests  store.RequestStore
	finder    Finder
	committer Committer
	groupSize int
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithGroupSize sets the number of players per match. Values below 2 are ignored.
func WithGroupSize(n int) Option {
	return func(e *Engine) {
		if n >= 2 {
			e.groupSize = n
		}
	}
}

// NewEngine creates a matchmaking engine.
func NewEngine(requests store.RequestStore, finder Finder, committer Committer, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		requests:  requests,
		finder:    finder,
		committer: committer,
		groupSize: DefaultGroupSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleSearchRequest runs one matching pass for the request. Redelivery is
// tolerated: an absorbed request is skipped and an enriched one reuses its
// stored nearby clubs. Losing a commit race is reported as StatusConflict,
// not as an error. Store failures and a missing request are returned.
func (e *Engine) HandleSearchRequest(ctx context.Context, requestID string) (Outcome, error) {
	log := e.logger.With("request_id", requestID)

	req, err := e.requests.GetSearchRequest(ctx, requestID)
	if err != nil {
		log.Error("load search request failed", "error", err)
		return Outcome{}, err
	}
	if req == nil {
		err := domain.ErrNotFound("search_request", requestID)
		log.Error("search request missing", "error", err)
		return Outcome{}, err
	}
	if !req.Available {
		log.Info("search request already absorbed, skipping")
		return Outcome{Status: StatusSkipped}, nil
	}

	closeClubs, ok, err := e.enrich(ctx, req)
	if err != nil {
		log.Error("enrich search request failed", "error", err)
		return Outcome{}, err
	}
	if !ok {
		log.Info("search request absorbed during enrichment, skipping")
		return Outcome{Status: StatusSkipped}, nil
	}

	for _, clubID := range closeClubs {
		out, err := e.tryClub(ctx, req, clubID)
		if err != nil {
			log.Error("matching failed", "club_id", clubID, "error", err)
			return Outcome{}, err
		}
		if out.Status != "" {
			return out, nil
		}
	}

	log.Info("no club could complete a group", "clubs", len(closeClubs))
	return Outcome{Status: StatusExhausted}, nil
}

// enrich stores the nearby-club set and availability together the first time
// a request is seen. ok is false if the request was absorbed meanwhile.
func (e *Engine) enrich(ctx context.Context, req *domain.SearchRequest) ([]string, bool, error) {
	if req.Enriched() {
		return req.CloseClubs, true, nil
	}
	clubs, err := e.finder.NearbyClubs(ctx, req.Location)
	if err != nil {
		return nil, false, err
	}
	if clubs == nil {
		clubs = []string{}
	}
	ok, err := e.requests.EnrichSearchRequest(ctx, req.ID, clubs)
	if err != nil || !ok {
		return nil, ok, err
	}
	req.CloseClubs = clubs
	e.logger.Debug("search request enriched", "request_id", req.ID, "close_clubs", clubs)
	return clubs, true, nil
}

// tryClub attempts a match at one club. A zero Outcome means move on to the next club.
func (e *Engine) tryClub(ctx context.Context, req *domain.SearchRequest, clubID string) (Outcome, error) {
	log := e.logger.With("request_id", req.ID, "club_id", clubID)

	courts, err := e.finder.CourtsOfClub(ctx, clubID)
	if err != nil {
		return Outcome{}, err
	}

	var court *domain.Court
	var slot *domain.TimeSlot
	for i := range courts {
		s, err := e.finder.MatchingSlot(ctx, courts[i].ID, req.DateTime)
		if err != nil {
			return Outcome{}, err
		}
		if s != nil {
			court, slot = &courts[i], s
			break
		}
	}
	if slot == nil {
		log.Debug("no open slot in window")
		return Outcome{}, nil
	}

	pending, err := e.finder.PendingRequests(ctx, clubID, req.DateTime)
	if err != nil {
		return Outcome{}, err
	}
	partners := e.pickPartners(req, pending)
	if partners == nil {
		log.Debug("not enough partners", "pending", len(pending))
		return Outcome{}, nil
	}

	group := make([]domain.Participant, 0, e.groupSize)
	group = append(group, domain.Participant{RequestID: req.ID, UserID: req.UserID})
	group = append(group, partners...)

	matchID, err := e.committer.Commit(ctx, group, court.ID, *slot, req.DateTime)
	if domain.IsConflict(err) {
		return Outcome{Status: StatusConflict, ClubID: clubID, CourtID: court.ID, SlotID: slot.ID}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: StatusMatched, MatchID: matchID, ClubID: clubID, CourtID: court.ID, SlotID: slot.ID}, nil
}

// pickPartners ranks pending requests by distance from req and takes the
// closest groupSize-1 distinct players, excluding req and its requester.
// Returns nil when there are not enough.
func (e *Engine) pickPartners(req *domain.SearchRequest, pending []domain.SearchRequest) []domain.Participant {
	need := e.groupSize - 1

	byID := make(map[string]domain.SearchRequest, len(pending))
	candidates := make([]geo.Candidate, 0, len(pending))
	for _, p := range pending {
		if p.ID == req.ID || p.UserID == req.UserID || !p.Available {
			continue
		}
		byID[p.ID] = p
		candidates = append(candidates, geo.Candidate{ID: p.ID, Location: p.Location})
	}
	if len(candidates) < need {
		return nil
	}

	seen := map[string]bool{req.UserID: true}
	picked := make([]domain.Participant, 0, need)
	for _, r := range geo.Rank(req.Location, candidates) {
		p := byID[r.ID]
		if seen[p.UserID] {
			continue
		}
		seen[p.UserID] = true
		picked = append(picked, domain.Participant{RequestID: p.ID, UserID: p.UserID})
		if len(picked) == need {
			return picked
		}
	}
	return nil
}
