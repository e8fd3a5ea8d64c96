package infra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/guard"
	"github.com/padelbud/platform/internal/repository"
)

type fakeOutbox struct {
	mu        sync.Mutex
	events    []domain.OutboxDraft
	published map[int64]bool
}

func (f *fakeOutbox) Insert(_ context.Context, _ repository.DBTX, d domain.OutboxDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.Seq = int64(len(f.events) + 1)
	f.events = append(f.events, d)
	return nil
}

func (f *fakeOutbox) FetchUnpublished(_ context.Context, _ repository.DBTX, limit int) ([]domain.OutboxDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.OutboxDraft
	for _, e := range f.events {
		if !f.published[e.Seq] && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, _ repository.DBTX, seqs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range seqs {
		f.published[s] = true
	}
	return nil
}

type recordingPublisher struct {
	sent    []Message
	failFor map[string]bool
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	if p.failFor[topic] {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, Message{Topic: topic, Key: key, Value: value})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedOutbox(t *testing.T) *fakeOutbox {
	t.Helper()
	f := &fakeOutbox{published: make(map[int64]bool)}
	ctx := context.Background()
	require.NoError(t, f.Insert(ctx, nil, domain.NewCourtCreatedEvent(&domain.Court{ID: "court-1", ClubID: "club-1"})))
	require.NoError(t, f.Insert(ctx, nil, domain.NewSearchRequestCreatedEvent(&domain.SearchRequest{ID: "req-1", UserID: "u1"})))
	require.NoError(t, f.Insert(ctx, nil, domain.NewSearchRequestCreatedEvent(&domain.SearchRequest{ID: "req-2", UserID: "u2"})))
	return f
}

func TestOutboxPoller_PublishesEnvelopes(t *testing.T) {
	outbox := seedOutbox(t)
	pub := &recordingPublisher{}
	p := NewOutboxPoller(nil, outbox, pub, nil, time.Second, 10, discardLogger())

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, pub.sent, 3)

	first := pub.sent[0]
	assert.Equal(t, string(domain.EventCourtCreated), first.Topic)
	assert.Equal(t, []byte("court-1"), first.Key)

	var env domain.Envelope
	require.NoError(t, json.Unmarshal(first.Value, &env))
	assert.Equal(t, domain.EventCourtCreated, env.EventType)
	assert.Equal(t, "court-1", env.AggregateID)

	var payload domain.CourtCreated
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "club-1", payload.ClubID)

	n, err = p.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "published rows are not sent again")
}

func TestOutboxPoller_FailedTopicHeldBack(t *testing.T) {
	outbox := seedOutbox(t)
	pub := &recordingPublisher{failFor: map[string]bool{string(domain.EventSearchRequestCreated): true}}
	p := NewOutboxPoller(nil, outbox, pub, nil, time.Second, 10, discardLogger())

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pub.failFor = nil
	n, err = p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.sent, 3)
	assert.Equal(t, []byte("req-1"), pub.sent[1].Key)
	assert.Equal(t, []byte("req-2"), pub.sent[2].Key)
}

func TestOutboxPoller_BreakerStopsHammering(t *testing.T) {
	outbox := seedOutbox(t)
	pub := &recordingPublisher{failFor: map[string]bool{string(domain.EventCourtCreated): true}}
	breaker := guard.NewCircuitBreaker(1, time.Hour)
	p := NewOutboxPoller(nil, outbox, pub, breaker, time.Second, 10, discardLogger())

	_, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, guard.CircuitOpen, breaker.State(string(domain.EventCourtCreated)))

	pub.failFor = nil
	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "open circuit keeps the topic held back")
}

func TestOutboxPoller_RunStopsOnCancel(t *testing.T) {
	outbox := seedOutbox(t)
	pub := &recordingPublisher{}
	p := NewOutboxPoller(nil, outbox, pub, nil, 5*time.Millisecond, 10, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		outbox.mu.Lock()
		defer outbox.mu.Unlock()
		return len(outbox.published) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
