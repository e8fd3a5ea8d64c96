package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/guard"
	"github.com/padelbud/platform/internal/infra"
	"github.com/padelbud/platform/internal/matchmaking"
)

type stubMatcher struct {
	calls []string
	err   error
}

func (m *stubMatcher) HandleSearchRequest(_ context.Context, id string) (matchmaking.Outcome, error) {
	m.calls = append(m.calls, id)
	if m.err != nil {
		return matchmaking.Outcome{}, m.err
	}
	return matchmaking.Outcome{Status: matchmaking.StatusExhausted}, nil
}

type stubProvisioner struct {
	courts []string
	days   []int
	err    error
}

func (p *stubProvisioner) ProvisionCourt(_ context.Context, courtID string, days int) (int, error) {
	p.courts = append(p.courts, courtID)
	p.days = append(p.days, days)
	return 4, p.err
}

func newDispatcher() (*Dispatcher, *stubMatcher, *stubProvisioner) {
	m := &stubMatcher{}
	p := &stubProvisioner{}
	d := NewDispatcher(m, p, guard.NewMemoryGuard(), time.Hour, 7, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return d, m, p
}

func message(t *testing.T, draft domain.OutboxDraft) infra.Message {
	t.Helper()
	body, err := json.Marshal(draft.Envelope())
	require.NoError(t, err)
	return infra.Message{Topic: string(draft.EventType), Key: []byte(draft.AggregateID), Value: body}
}

func TestDispatcher_RoutesSearchRequestCreated(t *testing.T) {
	d, m, p := newDispatcher()
	msg := message(t, domain.NewSearchRequestCreatedEvent(&domain.SearchRequest{ID: "req-1", UserID: "u1"}))

	require.NoError(t, d.Handle(context.Background(), msg))
	assert.Equal(t, []string{"req-1"}, m.calls)
	assert.Empty(t, p.courts)
}

func TestDispatcher_RoutesCourtCreated(t *testing.T) {
	d, m, p := newDispatcher()
	msg := message(t, domain.NewCourtCreatedEvent(&domain.Court{ID: "court-1", ClubID: "club-1"}))

	require.NoError(t, d.Handle(context.Background(), msg))
	assert.Equal(t, []string{"court-1"}, p.courts)
	assert.Equal(t, []int{7}, p.days)
	assert.Empty(t, m.calls)
}

func TestDispatcher_DuplicateDeliverySkipped(t *testing.T) {
	d, m, _ := newDispatcher()
	msg := message(t, domain.NewSearchRequestCreatedEvent(&domain.SearchRequest{ID: "req-1"}))

	require.NoError(t, d.Handle(context.Background(), msg))
	require.NoError(t, d.Handle(context.Background(), msg))
	assert.Len(t, m.calls, 1)
}

func TestDispatcher_FailureReleasesClaim(t *testing.T) {
	d, m, _ := newDispatcher()
	boom := errors.New("db down")
	m.err = boom
	msg := message(t, domain.NewSearchRequestCreatedEvent(&domain.SearchRequest{ID: "req-1"}))

	err := d.Handle(context.Background(), msg)
	assert.ErrorIs(t, err, boom)

	m.err = nil
	require.NoError(t, d.Handle(context.Background(), msg))
	assert.Len(t, m.calls, 2, "redelivery after failure runs again")
}

func TestDispatcher_ProvisioningFailureIsRetried(t *testing.T) {
	d, _, p := newDispatcher()
	p.err = errors.New("db down")
	msg := message(t, domain.NewCourtCreatedEvent(&domain.Court{ID: "court-1"}))

	assert.Error(t, d.Handle(context.Background(), msg))
	p.err = nil
	assert.NoError(t, d.Handle(context.Background(), msg))
	assert.Len(t, p.courts, 2)
}

func TestDispatcher_MissingRequestIsDropped(t *testing.T) {
	d, m, _ := newDispatcher()
	m.err = domain.ErrNotFound("search_request", "req-1")
	msg := message(t, domain.NewSearchRequestCreatedEvent(&domain.SearchRequest{ID: "req-1"}))

	assert.NoError(t, d.Handle(context.Background(), msg))
}

func TestDispatcher_DropsPoisonMessages(t *testing.T) {
	d, m, p := newDispatcher()
	ctx := context.Background()

	assert.NoError(t, d.Handle(ctx, infra.Message{Topic: "x", Value: []byte("not json")}))

	match := message(t, domain.NewMatchCreatedEvent(&domain.Match{ID: "m1"}))
	assert.NoError(t, d.Handle(ctx, match))

	empty := domain.NewSearchRequestCreatedEvent(&domain.SearchRequest{})
	assert.NoError(t, d.Handle(ctx, message(t, empty)))

	assert.Empty(t, m.calls)
	assert.Empty(t, p.courts)
}
