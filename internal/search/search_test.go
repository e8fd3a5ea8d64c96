package search

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/store"
)

var at = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

func newService(s *store.MemoryStore, opts ...Option) *Service {
	return NewService(s, s, s, s, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func TestNearbyClubs(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	clubs := []domain.Club{
		{ID: "broken"},
		{ID: "far", Location: domain.NewPoint(41.39, 2.17)},
		{ID: "near", Location: domain.NewPoint(40.42, -3.70)},
		{ID: "mid", Location: domain.NewPoint(40.96, -5.66)},
		{ID: "farther", Location: domain.NewPoint(48.85, 2.35)},
	}
	for i := range clubs {
		require.NoError(t, s.CreateClub(ctx, &clubs[i]))
	}
	madrid := domain.NewPoint(40.4168, -3.7038)

	t.Run("default limit", func(t *testing.T) {
		ids, err := newService(s).NearbyClubs(ctx, madrid)
		require.NoError(t, err)
		assert.Equal(t, []string{"near", "mid", "far"}, ids)
	})

	t.Run("malformed club ranks last", func(t *testing.T) {
		ids, err := newService(s, WithNearbyLimit(10)).NearbyClubs(ctx, madrid)
		require.NoError(t, err)
		assert.Equal(t, []string{"near", "mid", "far", "farther", "broken"}, ids)
	})
}

func TestMatchingSlot_FirstInWindow(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	// Store order is by id; "a" is further from at than "b" yet comes first.
	s.PutTimeSlot(domain.TimeSlot{ID: "a", CourtID: "court", Start: at.Add(-90 * time.Minute), Available: true})
	s.PutTimeSlot(domain.TimeSlot{ID: "b", CourtID: "court", Start: at, Available: true})
	s.PutTimeSlot(domain.TimeSlot{ID: "0", CourtID: "court", Start: at.Add(-3 * time.Hour), Available: true})

	slot, err := newService(s).MatchingSlot(ctx, "court", at)
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, "a", slot.ID)
}

func TestMatchingSlot_WindowBounds(t *testing.T) {
	tests := []struct {
		name   string
		offset time.Duration
		found  bool
	}{
		{"lower bound inclusive", -2 * time.Hour, true},
		{"upper bound inclusive", 2 * time.Hour, true},
		{"just before", -2*time.Hour - time.Second, false},
		{"just after", 2*time.Hour + time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			s.PutTimeSlot(domain.TimeSlot{ID: "x", CourtID: "court", Start: at.Add(tt.offset), Available: true})

			slot, err := newService(s).MatchingSlot(context.Background(), "court", at)
			require.NoError(t, err)
			assert.Equal(t, tt.found, slot != nil)
		})
	}
}

func TestMatchingSlot_IgnoresUnavailableAndOtherCourts(t *testing.T) {
	s := store.NewMemoryStore()
	s.PutTimeSlot(domain.TimeSlot{ID: "taken", CourtID: "court", Start: at, Available: false})
	s.PutTimeSlot(domain.TimeSlot{ID: "other", CourtID: "other-court", Start: at, Available: true})

	slot, err := newService(s).MatchingSlot(context.Background(), "court", at)
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestMatchingSlot_CustomWindow(t *testing.T) {
	s := store.NewMemoryStore()
	s.PutTimeSlot(domain.TimeSlot{ID: "x", CourtID: "court", Start: at.Add(90 * time.Minute), Available: true})

	slot, err := newService(s, WithWindow(time.Hour)).MatchingSlot(context.Background(), "court", at)
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestPendingRequests(t *testing.T) {
	s := store.NewMemoryStore()
	s.PutSearchRequest(domain.SearchRequest{ID: "in", DateTime: at.Add(time.Hour), Available: true, CloseClubs: []string{"club"}})
	s.PutSearchRequest(domain.SearchRequest{ID: "edge", DateTime: at.Add(2 * time.Hour), Available: true, CloseClubs: []string{"club"}})
	s.PutSearchRequest(domain.SearchRequest{ID: "late", DateTime: at.Add(3 * time.Hour), Available: true, CloseClubs: []string{"club"}})
	s.PutSearchRequest(domain.SearchRequest{ID: "gone", DateTime: at, Available: false, CloseClubs: []string{"club"}})

	got, err := newService(s).PendingRequests(context.Background(), "club", at)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "in", got[0].ID)
	assert.Equal(t, "edge", got[1].ID)
}

func TestCourtsOfClub(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateClub(ctx, &domain.Club{ID: "club"}))
	require.NoError(t, s.CreateCourt(ctx, &domain.Court{ID: "c2", ClubID: "club"}))
	require.NoError(t, s.CreateCourt(ctx, &domain.Court{ID: "c1", ClubID: "club"}))

	courts, err := newService(s).CourtsOfClub(ctx, "club")
	require.NoError(t, err)
	require.Len(t, courts, 2)
	assert.Equal(t, "c1", courts[0].ID)
}
