package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types. The value doubles as the broker topic.
type EventType string

const (
	EventSearchRequestCreated EventType = "padel.search_request.created"
	EventCourtCreated         EventType = "padel.court.created"
	EventMatchCreated         EventType = "padel.match.created"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateSearchRequest AggregateType = "search_request"
	AggregateCourt         AggregateType = "court"
	AggregateMatch         AggregateType = "match"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	Seq           int64           `json:"-"`
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// Envelope is the message body published to the broker for every outbox event.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateType AggregateType   `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Envelope wraps the draft for publishing.
func (d OutboxDraft) Envelope() Envelope {
	return Envelope{
		EventID:       d.EventID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       d.Payload,
		OccurredAt:    d.OccurredAt,
	}
}

func newDraft(aggregate AggregateType, id string, evt EventType, v interface{}) OutboxDraft {
	payload, _ := json.Marshal(v)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: aggregate,
		AggregateID:   id,
		EventType:     evt,
		PartitionKey:  id,
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
	}
}

// SearchRequestCreated is the payload of EventSearchRequestCreated.
type SearchRequestCreated struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
}

// CourtCreated is the payload of EventCourtCreated.
type CourtCreated struct {
	CourtID string `json:"court_id"`
	ClubID  string `json:"club_id"`
}

// NewSearchRequestCreatedEvent triggers matchmaking for a freshly stored request.
func NewSearchRequestCreatedEvent(r *SearchRequest) OutboxDraft {
	return newDraft(AggregateSearchRequest, r.ID, EventSearchRequestCreated, SearchRequestCreated{
		RequestID: r.ID,
		UserID:    r.UserID,
	})
}

// NewCourtCreatedEvent triggers initial slot provisioning for a court.
func NewCourtCreatedEvent(c *Court) OutboxDraft {
	return newDraft(AggregateCourt, c.ID, EventCourtCreated, CourtCreated{
		CourtID: c.ID,
		ClubID:  c.ClubID,
	})
}

// NewMatchCreatedEvent announces a committed match.
func NewMatchCreatedEvent(m *Match) OutboxDraft {
	return newDraft(AggregateMatch, m.ID, EventMatchCreated, m)
}
