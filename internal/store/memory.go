package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/padelbud/platform/internal/domain"
)

// MemoryStore is a mutex-guarded Store with the same conditional-write
// semantics as PostgresStore. Used by tests and local runs without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	clubs    map[string]domain.Club
	courts   map[string]domain.Court
	slots    map[string]domain.TimeSlot
	requests map[string]domain.SearchRequest
	matches  map[string]domain.Match
	players  map[string]domain.Player
	events   []domain.OutboxDraft
	seq      int64
	failures map[string]error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clubs:    make(map[string]domain.Club),
		courts:   make(map[string]domain.Court),
		slots:    make(map[string]domain.TimeSlot),
		requests: make(map[string]domain.SearchRequest),
		matches:  make(map[string]domain.Match),
		players:  make(map[string]domain.Player),
		failures: make(map[string]error),
	}
}

var _ Store = (*MemoryStore)(nil)

// FailOn makes every later call of the named method return err. A nil err clears it.
func (s *MemoryStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// Events returns a copy of every event recorded so far, oldest first.
func (s *MemoryStore) Events() []domain.OutboxDraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.OutboxDraft, len(s.events))
	copy(out, s.events)
	return out
}

// PutTimeSlot overwrites a slot unconditionally. Intended for seeding.
func (s *MemoryStore) PutTimeSlot(slot domain.TimeSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot.ID] = slot
}

// PutSearchRequest overwrites a request unconditionally without recording an event.
func (s *MemoryStore) PutSearchRequest(req domain.SearchRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = copyRequest(req)
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures["Ping"]
}

func (s *MemoryStore) ListClubs(ctx context.Context) ([]domain.Club, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures["ListClubs"]; err != nil {
		return nil, err
	}
	out := make([]domain.Club, 0, len(s.clubs))
	for _, c := range s.clubs {
		out = append(out, copyClub(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetClub(ctx context.Context, id string) (*domain.Club, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures["GetClub"]; err != nil {
		return nil, err
	}
	c, ok := s.clubs[id]
	if !ok {
		return nil, nil
	}
	c = copyClub(c)
	return &c, nil
}

func (s *MemoryStore) CreateClub(ctx context.Context, club *domain.Club) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["CreateClub"]; err != nil {
		return err
	}
	if _, exists := s.clubs[club.ID]; exists {
		return domain.ErrConflict("club " + club.ID + " already exists")
	}
	s.clubs[club.ID] = copyClub(*club)
	return nil
}

func (s *MemoryStore) GetCourt(ctx context.Context, id string) (*domain.Court, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures["GetCourt"]; err != nil {
		return nil, err
	}
	c, ok := s.courts[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) ListCourts(ctx context.Context) ([]domain.Court, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures["ListCourts"]; err != nil {
		return nil, err
	}
	out := make([]domain.Court, 0, len(s.courts))
	for _, c := range s.courts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CourtsOfClub(ctx context.Context, clubID string) ([]domain.Court, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures["CourtsOfClub"]; err != nil {
		return nil, err
	}
	var out []domain.Court
	for _, c := range s.courts {
		if c.ClubID == clubID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateCourt(ctx context.Context, court *domain.Court) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["CreateCourt"]; err != nil {
		return err
	}
	if _, ok := s.clubs[court.ClubID]; !ok {
		return domain.ErrNotFound("club", court.ClubID)
	}
	if _, exists := s.courts[court.ID]; exists {
		return domain.ErrConflict("court " + court.ID + " already exists")
	}
	court.CreatedAt = now()
	s.courts[court.ID] = *court
	s.record(domain.NewCourtCreatedEvent(court))
	return nil
}

func (s *MemoryStore) GetTimeSlot(ctx context.Context, id string) (*domain.TimeSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures["GetTimeSlot"]; err != nil {
		return nil, err
	}
	slot, ok := s.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (s *MemoryStore) CreateTimeSlotIfAbsent(ctx context.Context, slot *domain.TimeSlot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["CreateTimeSlotIfAbsent"]; err != nil {
		return false, err
	}
	if _, exists := s.slots[slot.ID]; exists {
		return false, nil
	}
	s.slots[slot.ID] = *slot
	return true, nil
}

func (s *MemoryStore) AvailableSlots(ctx context.Context, courtID string) ([]domain.TimeSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures["AvailableSlots"]; err != nil {
		return nil, err
	}
	var out []domain.TimeSlot
	for _, slot := range s.slots {
		if slot.CourtID == courtID && slot.Available {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetSearchRequest(ctx context.Context, id string) (*domain.SearchRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures["GetSearchRequest"]; err != nil {
		return nil, err
	}
	r, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	r = copyRequest(r)
	return &r, nil
}

func (s *MemoryStore) CreateSearchRequest(ctx context.Context, req *domain.SearchRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["CreateSearchRequest"]; err != nil {
		return err
	}
	if _, exists := s.requests[req.ID]; exists {
		return domain.ErrConflict("search request " + req.ID + " already exists")
	}
	req.CreatedAt = now()
	s.requests[req.ID] = copyRequest(*req)

	p := s.players[req.UserID]
	p.ID = req.UserID
	p.BuddiesState = domain.StateSearching
	p.UpdatedAt = now()
	s.players[req.UserID] = p

	s.record(domain.NewSearchRequestCreatedEvent(req))
	return nil
}

func (s *MemoryStore) EnrichSearchRequest(ctx context.Context, id string, closeClubs []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["EnrichSearchRequest"]; err != nil {
		return false, err
	}
	r, ok := s.requests[id]
	if !ok || !r.Available {
		return false, nil
	}
	r.CloseClubs = append([]string{}, closeClubs...)
	s.requests[id] = r
	return true, nil
}

func (s *MemoryStore) PendingSearchRequests(ctx context.Context, clubID string, window domain.Window) ([]domain.SearchRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures["PendingSearchRequests"]; err != nil {
		return nil, err
	}
	var out []domain.SearchRequest
	for _, r := range s.requests {
		if !r.Available || !window.Contains(r.DateTime) || !contains(r.CloseClubs, clubID) {
			continue
		}
		out = append(out, copyRequest(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateTime.Equal(out[j].DateTime) {
			return out[i].DateTime.Before(out[j].DateTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetMatch(ctx context.Context, id string) (*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures["GetMatch"]; err != nil {
		return nil, err
	}
	m, ok := s.matches[id]
	if !ok {
		return nil, nil
	}
	m.UserIDs = append([]string(nil), m.UserIDs...)
	return &m, nil
}

// Matches returns every stored match ordered by ID.
func (s *MemoryStore) Matches() []domain.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Match, 0, len(s.matches))
	for _, m := range s.matches {
		m.UserIDs = append([]string(nil), m.UserIDs...)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures["GetPlayer"]; err != nil {
		return nil, err
	}
	p, ok := s.players[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ApplyAllocation checks every precondition before touching any map, so a
// failed allocation leaves the store unchanged.
func (s *MemoryStore) ApplyAllocation(ctx context.Context, alloc domain.Allocation) (*domain.Match, error) {
	if err := alloc.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["ApplyAllocation"]; err != nil {
		return nil, err
	}

	slot, ok := s.slots[alloc.TimeSlotID]
	if !ok || !slot.Available {
		return nil, domain.ErrConflict("time slot " + alloc.TimeSlotID + " is no longer available")
	}
	for _, p := range alloc.Participants {
		r, ok := s.requests[p.RequestID]
		if !ok || !r.Available {
			return nil, domain.ErrConflict(fmt.Sprintf("search request %s is no longer available", p.RequestID))
		}
	}
	if _, exists := s.matches[alloc.MatchID]; exists {
		return nil, domain.ErrConflict("match " + alloc.MatchID + " already exists")
	}

	ts := now()
	slot.Available = false
	slot.Buddies++
	s.slots[slot.ID] = slot

	for _, p := range alloc.Participants {
		r := s.requests[p.RequestID]
		r.Available = false
		s.requests[p.RequestID] = r
	}

	match := domain.Match{
		ID:         alloc.MatchID,
		UserIDs:    alloc.UserIDs(),
		CourtID:    alloc.CourtID,
		TimeSlotID: alloc.TimeSlotID,
		DateTime:   alloc.DateTime,
		CreatedAt:  ts,
	}
	s.matches[match.ID] = match

	for _, userID := range match.UserIDs {
		matchID := match.ID
		s.players[userID] = domain.Player{
			ID:           userID,
			MatchID:      &matchID,
			BuddiesState: domain.StateMatched,
			UpdatedAt:    ts,
		}
	}

	s.record(domain.NewMatchCreatedEvent(&match))

	out := match
	out.UserIDs = append([]string(nil), match.UserIDs...)
	return &out, nil
}

// record appends an event. Caller holds the write lock.
func (s *MemoryStore) record(draft domain.OutboxDraft) {
	s.seq++
	draft.Seq = s.seq
	s.events = append(s.events, draft)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func copyClub(c domain.Club) domain.Club {
	if c.Location != nil {
		loc := *c.Location
		c.Location = &loc
	}
	if c.Schedule != nil {
		sched := make(domain.WeeklySchedule, len(c.Schedule))
		for k, v := range c.Schedule {
			sched[k] = v
		}
		c.Schedule = sched
	}
	return c
}

func copyRequest(r domain.SearchRequest) domain.SearchRequest {
	if r.Location != nil {
		loc := *r.Location
		r.Location = &loc
	}
	if r.CloseClubs != nil {
		r.CloseClubs = append([]string{}, r.CloseClubs...)
	}
	return r
}
