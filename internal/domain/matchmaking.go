package domain

import (
	"time"
)

// SearchRequest is a player's open request to join a game near a place and time.
// CloseClubs is nil until the request has been enriched.
type SearchRequest struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Location   *Point    `json:"location,omitempty"`
	DateTime   time.Time `json:"date_time"`
	Available  bool      `json:"available"`
	CloseClubs []string  `json:"close_clubs"`
	CreatedAt  time.Time `json:"created_at"`
}

// Enriched reports whether nearby clubs have been computed for the request.
func (r SearchRequest) Enriched() bool { return r.CloseClubs != nil }

// Match is an allocated group on a court and slot. Immutable once created.
type Match struct {
	ID         string    `json:"id"`
	UserIDs    []string  `json:"user_ids"`
	CourtID    string    `json:"court_id"`
	TimeSlotID string    `json:"time_slot_id"`
	DateTime   time.Time `json:"date_time"`
	CreatedAt  time.Time `json:"created_at"`
}

// BuddiesState is the coarse player status.
type BuddiesState int

const (
	StateIdle      BuddiesState = 0
	StateSearching BuddiesState = 1
	StateMatched   BuddiesState = 2
)

func (s BuddiesState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateMatched:
		return "matched"
	default:
		return "unknown"
	}
}

// Player is the per-user matchmaking record.
type Player struct {
	ID           string       `json:"id"`
	MatchID      *string      `json:"match_id,omitempty"`
	BuddiesState BuddiesState `json:"buddies_state"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Participant pairs a search request with its requesting player.
type Participant struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
}

// Allocation is the full set of writes produced by one match decision.
type Allocation struct {
	MatchID      string
	Participants []Participant
	CourtID      string
	TimeSlotID   string
	DateTime     time.Time
}

// UserIDs returns participant user ids in group order.
func (a Allocation) UserIDs() []string {
	out := make([]string, len(a.Participants))
	for i, p := range a.Participants {
		out[i] = p.UserID
	}
	return out
}

// RequestIDs returns participant request ids in group order.
func (a Allocation) RequestIDs() []string {
	out := make([]string, len(a.Participants))
	for i, p := range a.Participants {
		out[i] = p.RequestID
	}
	return out
}

// Validate checks the allocation is internally consistent before it is applied.
func (a Allocation) Validate() error {
	if a.MatchID == "" || a.CourtID == "" || a.TimeSlotID == "" {
		return ErrValidation("allocation needs a match, court and time slot")
	}
	if len(a.Participants) == 0 {
		return ErrValidation("allocation has no participants")
	}
	requests := make(map[string]bool, len(a.Participants))
	users := make(map[string]bool, len(a.Participants))
	for _, p := range a.Participants {
		if p.RequestID == "" || p.UserID == "" {
			return ErrValidation("participant needs a request and a user")
		}
		if requests[p.RequestID] {
			return ErrValidation("request " + p.RequestID + " appears twice")
		}
		if users[p.UserID] {
			return ErrValidation("user " + p.UserID + " appears twice")
		}
		requests[p.RequestID] = true
		users[p.UserID] = true
	}
	return nil
}
