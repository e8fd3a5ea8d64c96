package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/padelbud/platform/internal/guard"
	"github.com/padelbud/platform/internal/repository"
)

// OutboxPoller publishes unpublished event_outbox rows, oldest first, and
// stamps the ones the broker accepted. Topic is the event type and key the
// aggregate id.
type OutboxPoller struct {
	db        repository.DBTX
	outbox    repository.OutboxRepository
	publisher Publisher
	breaker   *guard.CircuitBreaker
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxPoller creates a poller. breaker may be nil.
func NewOutboxPoller(db repository.DBTX, outbox repository.OutboxRepository, publisher Publisher,
	breaker *guard.CircuitBreaker, interval time.Duration, batchSize int, logger *slog.Logger) *OutboxPoller {
	return &OutboxPoller{
		db:        db,
		outbox:    outbox,
		publisher: publisher,
		breaker:   breaker,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) error {
	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return nil
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox poll error", "error", err)
			}
		}
	}
}

// Poll publishes one batch and returns how many events were marked published.
// Once a topic fails, its later events in the batch are held back so
// per-topic order is kept.
func (p *OutboxPoller) Poll(ctx context.Context) (int, error) {
	events, err := p.outbox.FetchUnpublished(ctx, p.db, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	blocked := make(map[string]bool)
	published := make([]int64, 0, len(events))
	for _, e := range events {
		topic := string(e.EventType)
		if blocked[topic] {
			continue
		}
		if p.breaker != nil {
			if res := p.breaker.Check(topic); !res.Allowed {
				p.logger.Debug("publish held back", "topic", topic, "reason", res.Reason)
				blocked[topic] = true
				continue
			}
		}

		body, err := json.Marshal(e.Envelope())
		if err != nil {
			p.logger.Error("encode envelope failed", "event_id", e.EventID, "error", err)
			continue
		}
		if err := p.publisher.Publish(ctx, topic, []byte(e.AggregateID), body); err != nil {
			p.logger.Error("publish failed", "event_id", e.EventID, "topic", topic, "error", err)
			if p.breaker != nil {
				p.breaker.RecordFailure(topic)
			}
			blocked[topic] = true
			continue
		}
		if p.breaker != nil {
			p.breaker.RecordSuccess(topic)
		}
		published = append(published, e.Seq)
	}

	if len(published) == 0 {
		return 0, nil
	}
	if err := p.outbox.MarkPublished(ctx, p.db, published); err != nil {
		return 0, err
	}
	p.logger.Debug("outbox batch published", "published", len(published), "fetched", len(events))
	return len(published), nil
}
