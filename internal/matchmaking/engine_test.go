package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padelbud/platform/internal/allocation"
	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/search"
	"github.com/padelbud/platform/internal/store"
)

var at = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

const (
	baseLat = 40.4168
	baseLng = -3.7038
)

type fixture struct {
	t      *testing.T
	s      *store.MemoryStore
	logger *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, s: store.NewMemoryStore(), logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (f *fixture) engine(matches store.MatchStore, opts ...Option) *Engine {
	finder := search.NewService(f.s, f.s, f.s, f.s, f.logger)
	return NewEngine(f.s, finder, allocation.NewCommitter(matches, f.logger), f.logger, opts...)
}

// club creates a club with one court, optionally with an open slot at the desired instant.
func (f *fixture) club(id string, lat, lng float64, withSlot bool) {
	f.t.Helper()
	ctx := context.Background()
	require.NoError(f.t, f.s.CreateClub(ctx, &domain.Club{ID: id, Location: domain.NewPoint(lat, lng)}))
	require.NoError(f.t, f.s.CreateCourt(ctx, &domain.Court{ID: id + "-court", ClubID: id, GameDuration: 60}))
	if withSlot {
		f.s.PutTimeSlot(domain.NewTimeSlot(id+"-court", at.Add(30*time.Minute), time.Hour))
	}
}

func (f *fixture) pending(id, user string, lat float64, clubs ...string) {
	f.s.PutSearchRequest(domain.SearchRequest{
		ID: id, UserID: user, Location: domain.NewPoint(lat, baseLng),
		DateTime: at.Add(time.Hour), Available: true, CloseClubs: clubs,
	})
}

func (f *fixture) incoming(id, user string) {
	f.s.PutSearchRequest(domain.SearchRequest{
		ID: id, UserID: user, Location: domain.NewPoint(baseLat, baseLng),
		DateTime: at, Available: true,
	})
}

func (f *fixture) request(id string) *domain.SearchRequest {
	f.t.Helper()
	r, err := f.s.GetSearchRequest(context.Background(), id)
	require.NoError(f.t, err)
	require.NotNil(f.t, r)
	return r
}

func (f *fixture) slot(courtID string) *domain.TimeSlot {
	f.t.Helper()
	s, err := f.s.GetTimeSlot(context.Background(), domain.SlotID(courtID, at.Add(30*time.Minute)))
	require.NoError(f.t, err)
	require.NotNil(f.t, s)
	return s
}

func TestHandleSearchRequest_PicksThreeClosestOfFive(t *testing.T) {
	f := newFixture(t)
	f.club("c1", 40.42, -3.70, true)
	for k := 1; k <= 5; k++ {
		f.pending(fmt.Sprintf("p%d", k), fmt.Sprintf("user-p%d", k), baseLat+0.01*float64(k), "c1")
	}
	f.incoming("r1", "user-r1")

	out, err := f.engine(f.s).HandleSearchRequest(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, StatusMatched, out.Status)
	assert.Equal(t, "c1", out.ClubID)
	assert.Equal(t, "c1-court", out.CourtID)

	match, err := f.s.GetMatch(context.Background(), out.MatchID)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, []string{"user-r1", "user-p1", "user-p2", "user-p3"}, match.UserIDs)
	assert.True(t, match.DateTime.Equal(at), "match instant is the desired instant")
	assert.Equal(t, f.slot("c1-court").ID, match.TimeSlotID)

	for _, id := range []string{"r1", "p1", "p2", "p3"} {
		assert.False(t, f.request(id).Available, id)
	}
	for _, id := range []string{"p4", "p5"} {
		assert.True(t, f.request(id).Available, id)
	}
	assert.False(t, f.slot("c1-court").Available)

	player, _ := f.s.GetPlayer(context.Background(), "user-p2")
	require.NotNil(t, player)
	assert.Equal(t, domain.StateMatched, player.BuddiesState)
}

func TestHandleSearchRequest_SkipsClubWithTooFewPartners(t *testing.T) {
	f := newFixture(t)
	f.club("c1", 40.42, -3.70, true)
	f.club("c2", 40.50, -3.70, true)
	f.pending("a1", "user-a1", baseLat+0.001, "c1")
	f.pending("a2", "user-a2", baseLat+0.002, "c1")
	f.pending("b1", "user-b1", baseLat+0.010, "c2")
	f.pending("b2", "user-b2", baseLat+0.020, "c2")
	f.pending("b3", "user-b3", baseLat+0.030, "c2")
	f.incoming("r1", "user-r1")

	out, err := f.engine(f.s).HandleSearchRequest(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, StatusMatched, out.Status)
	assert.Equal(t, "c2", out.ClubID)

	assert.Equal(t, []string{"c1", "c2"}, f.request("r1").CloseClubs)
	assert.True(t, f.request("a1").Available)
	assert.True(t, f.slot("c1-court").Available)
	assert.False(t, f.slot("c2-court").Available)
}

func TestHandleSearchRequest_ExhaustedLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	f.club("c1", 40.42, -3.70, true)
	f.club("c2", 40.43, -3.70, false)
	f.club("c3", 40.44, -3.70, true)
	f.club("c4", 40.60, -3.70, true)
	f.pending("a1", "user-a1", baseLat, "c1")
	for k := 1; k <= 3; k++ {
		f.pending(fmt.Sprintf("b%d", k), fmt.Sprintf("user-b%d", k), baseLat, "c2")
		f.pending(fmt.Sprintf("d%d", k), fmt.Sprintf("user-d%d", k), baseLat, "c4")
	}
	f.incoming("r1", "user-r1")
	eventsBefore := len(f.s.Events())

	out, err := f.engine(f.s).HandleSearchRequest(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusExhausted, out.Status)

	r1 := f.request("r1")
	assert.True(t, r1.Available)
	assert.Equal(t, []string{"c1", "c2", "c3"}, r1.CloseClubs, "only the 3 closest clubs are considered")

	assert.Empty(t, f.s.Matches())
	assert.Len(t, f.s.Events(), eventsBefore)
	for _, court := range []string{"c1-court", "c3-court", "c4-court"} {
		assert.True(t, f.slot(court).Available, court)
	}
	for _, id := range []string{"a1", "b1", "d1", "d2", "d3"} {
		assert.True(t, f.request(id).Available, id)
	}
}

func TestHandleSearchRequest_FirstCourtWithSlotWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.s.CreateClub(ctx, &domain.Club{ID: "c1", Location: domain.NewPoint(40.42, -3.70)}))
	for _, id := range []string{"court-a", "court-b", "court-c"} {
		require.NoError(t, f.s.CreateCourt(ctx, &domain.Court{ID: id, ClubID: "c1"}))
	}
	f.s.PutTimeSlot(domain.NewTimeSlot("court-b", at, time.Hour))
	f.s.PutTimeSlot(domain.NewTimeSlot("court-c", at, time.Hour))
	for k := 1; k <= 3; k++ {
		f.pending(fmt.Sprintf("p%d", k), fmt.Sprintf("user-p%d", k), baseLat, "c1")
	}
	f.incoming("r1", "user-r1")

	out, err := f.engine(f.s).HandleSearchRequest(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, StatusMatched, out.Status)
	assert.Equal(t, "court-b", out.CourtID)
}

func TestHandleSearchRequest_ExcludesOwnRequestsAndDuplicatePlayers(t *testing.T) {
	t.Run("requester's other request is not a partner", func(t *testing.T) {
		f := newFixture(t)
		f.club("c1", 40.42, -3.70, true)
		f.pending("mine", "user-r1", baseLat, "c1")
		f.pending("p1", "user-p1", baseLat, "c1")
		f.pending("p2", "user-p2", baseLat, "c1")
		f.incoming("r1", "user-r1")

		out, err := f.engine(f.s).HandleSearchRequest(context.Background(), "r1")
		require.NoError(t, err)
		assert.Equal(t, StatusExhausted, out.Status)
	})

	t.Run("one player contributes one request", func(t *testing.T) {
		f := newFixture(t)
		f.club("c1", 40.42, -3.70, true)
		f.pending("x-near", "user-x", baseLat+0.001, "c1")
		f.pending("x-nearer", "user-x", baseLat+0.0005, "c1")
		f.pending("y", "user-y", baseLat+0.002, "c1")
		f.pending("z", "user-z", baseLat+0.003, "c1")
		f.incoming("r1", "user-r1")

		out, err := f.engine(f.s).HandleSearchRequest(context.Background(), "r1")
		require.NoError(t, err)
		require.Equal(t, StatusMatched, out.Status)

		match, _ := f.s.GetMatch(context.Background(), out.MatchID)
		assert.Equal(t, []string{"user-r1", "user-x", "user-y", "user-z"}, match.UserIDs)
		assert.False(t, f.request("x-nearer").Available)
		assert.True(t, f.request("x-near").Available)
	})
}

func TestHandleSearchRequest_MalformedPartnerLocationRanksLast(t *testing.T) {
	f := newFixture(t)
	f.club("c1", 40.42, -3.70, true)
	f.s.PutSearchRequest(domain.SearchRequest{
		ID: "nowhere", UserID: "user-nowhere", DateTime: at, Available: true, CloseClubs: []string{"c1"},
	})
	for k := 1; k <= 3; k++ {
		f.pending(fmt.Sprintf("p%d", k), fmt.Sprintf("user-p%d", k), baseLat+0.5*float64(k), "c1")
	}
	f.incoming("r1", "user-r1")

	out, err := f.engine(f.s).HandleSearchRequest(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, StatusMatched, out.Status)
	assert.True(t, f.request("nowhere").Available)
}

func TestHandleSearchRequest_Redelivery(t *testing.T) {
	f := newFixture(t)
	f.club("c1", 40.42, -3.70, true)
	for k := 1; k <= 3; k++ {
		f.pending(fmt.Sprintf("p%d", k), fmt.Sprintf("user-p%d", k), baseLat, "c1")
	}
	f.incoming("r1", "user-r1")
	e := f.engine(f.s)
	ctx := context.Background()

	first, err := e.HandleSearchRequest(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, StatusMatched, first.Status)

	second, err := e.HandleSearchRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, second.Status)
	assert.Len(t, f.s.Matches(), 1)
	assert.False(t, f.request("r1").Available, "absorbed request never flips back")
}

func TestHandleSearchRequest_ReusesStoredNearbyClubs(t *testing.T) {
	f := newFixture(t)
	f.club("c1", 40.42, -3.70, true)
	f.club("c2", 40.50, -3.70, true)
	for k := 1; k <= 3; k++ {
		f.pending(fmt.Sprintf("a%d", k), fmt.Sprintf("user-a%d", k), baseLat, "c1", "c2")
	}
	f.s.PutSearchRequest(domain.SearchRequest{
		ID: "r1", UserID: "user-r1", Location: domain.NewPoint(baseLat, baseLng),
		DateTime: at, Available: true, CloseClubs: []string{"c2"},
	})

	out, err := f.engine(f.s).HandleSearchRequest(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, StatusMatched, out.Status)
	assert.Equal(t, "c2", out.ClubID)
}

func TestHandleSearchRequest_NoClubs(t *testing.T) {
	f := newFixture(t)
	f.incoming("r1", "user-r1")

	out, err := f.engine(f.s).HandleSearchRequest(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusExhausted, out.Status)

	r1 := f.request("r1")
	assert.NotNil(t, r1.CloseClubs)
	assert.Empty(t, r1.CloseClubs)
}

func TestHandleSearchRequest_MissingRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine(f.s).HandleSearchRequest(context.Background(), "ghost")
	assert.True(t, domain.IsNotFound(err))
}

func TestHandleSearchRequest_StoreFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.club("c1", 40.42, -3.70, true)
	f.incoming("r1", "user-r1")
	boom := errors.New("db down")
	f.s.FailOn("PendingSearchRequests", boom)

	_, err := f.engine(f.s).HandleSearchRequest(context.Background(), "r1")
	assert.ErrorIs(t, err, boom)
}

func TestHandleSearchRequest_GroupSize(t *testing.T) {
	f := newFixture(t)
	f.club("c1", 40.42, -3.70, true)
	f.pending("p1", "user-p1", baseLat+0.01, "c1")
	f.pending("p2", "user-p2", baseLat+0.02, "c1")
	f.incoming("r1", "user-r1")

	out, err := f.engine(f.s, WithGroupSize(2)).HandleSearchRequest(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, StatusMatched, out.Status)

	match, _ := f.s.GetMatch(context.Background(), out.MatchID)
	assert.Equal(t, []string{"user-r1", "user-p1"}, match.UserIDs)
}

// slotThief consumes the slot right before the real apply, as a concurrent
// winner would between read and commit.
type slotThief struct {
	*store.MemoryStore
}

func (s slotThief) ApplyAllocation(ctx context.Context, alloc domain.Allocation) (*domain.Match, error) {
	slot, _ := s.GetTimeSlot(ctx, alloc.TimeSlotID)
	slot.Available = false
	s.PutTimeSlot(*slot)
	return s.MemoryStore.ApplyAllocation(ctx, alloc)
}

func TestHandleSearchRequest_LostRaceKeepsRequestAvailable(t *testing.T) {
	f := newFixture(t)
	f.club("c1", 40.42, -3.70, true)
	for k := 1; k <= 3; k++ {
		f.pending(fmt.Sprintf("p%d", k), fmt.Sprintf("user-p%d", k), baseLat, "c1")
	}
	f.incoming("r1", "user-r1")

	out, err := f.engine(slotThief{f.s}).HandleSearchRequest(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusConflict, out.Status)

	assert.Empty(t, f.s.Matches())
	for _, id := range []string{"r1", "p1", "p2", "p3"} {
		assert.True(t, f.request(id).Available, id)
	}
}

func TestHandleSearchRequest_ConcurrentAttemptsShareOneSlot(t *testing.T) {
	f := newFixture(t)
	f.club("c1", 40.42, -3.70, true)
	ids := make([]string, 8)
	for k := range ids {
		ids[k] = fmt.Sprintf("p%d", k)
		f.pending(ids[k], "user-"+ids[k], baseLat+0.001*float64(k), "c1")
	}
	e := f.engine(f.s)

	var wg sync.WaitGroup
	start := make(chan struct{})
	outcomes := make([]Outcome, len(ids))
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			<-start
			outcomes[i], errs[i] = e.HandleSearchRequest(context.Background(), id)
		}(i, id)
	}
	close(start)
	wg.Wait()

	matched := 0
	for i := range ids {
		require.NoError(t, errs[i])
		switch outcomes[i].Status {
		case StatusMatched:
			matched++
		case StatusConflict, StatusExhausted, StatusSkipped:
		default:
			t.Fatalf("unexpected status %q", outcomes[i].Status)
		}
	}
	assert.Equal(t, 1, matched)
	assert.Len(t, f.s.Matches(), 1)
	assert.False(t, f.slot("c1-court").Available)

	absorbed := 0
	for _, id := range ids {
		if !f.request(id).Available {
			absorbed++
		}
	}
	assert.Equal(t, 4, absorbed)
}
