// Package trigger routes broker deliveries of domain events to the engines.
package trigger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/guard"
	"github.com/padelbud/platform/internal/infra"
	"github.com/padelbud/platform/internal/matchmaking"
)

// Topics returns the event types the worker consumes.
func Topics() []string {
	return []string{string(domain.EventSearchRequestCreated), string(domain.EventCourtCreated)}
}

// Matcher runs matchmaking for one request.
type Matcher interface {
	HandleSearchRequest(ctx context.Context, requestID string) (matchmaking.Outcome, error)
}

// Provisioner creates slots for one court.
type Provisioner interface {
	ProvisionCourt(ctx context.Context, courtID string, days int) (int, error)
}

// Dispatcher decodes event envelopes and invokes the matching engine.
// Deliveries are at least once: each event id is claimed before it is
// handled and the claim is released if handling fails, so a redelivery
// after failure runs again while a duplicate after success is dropped.
type Dispatcher struct {
	matcher     Matcher
	provisioner Provisioner
	guard       guard.DeliveryGuard
	claimTTL    time.Duration
	horizonDays int
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher. horizonDays is the provisioning horizon for new courts.
func NewDispatcher(matcher Matcher, provisioner Provisioner, g guard.DeliveryGuard, claimTTL time.Duration, horizonDays int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		matcher:     matcher,
		provisioner: provisioner,
		guard:       g,
		claimTTL:    claimTTL,
		horizonDays: horizonDays,
		logger:      logger,
	}
}

// Handle processes one delivery. It returns an error only when the delivery
// should be retried; undecodable or unknown events are logged and dropped.
func (d *Dispatcher) Handle(ctx context.Context, msg infra.Message) error {
	var env domain.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		d.logger.Error("undecodable event dropped", "topic", msg.Topic, "error", err)
		return nil
	}
	log := d.logger.With("event_id", env.EventID, "event_type", env.EventType, "aggregate_id", env.AggregateID)

	switch env.EventType {
	case domain.EventSearchRequestCreated, domain.EventCourtCreated:
	default:
		log.Warn("unhandled event type dropped")
		return nil
	}

	key := env.EventID.String()
	claimed, err := d.guard.Claim(ctx, key, d.claimTTL)
	if err != nil {
		log.Error("delivery claim failed", "error", err)
		return err
	}
	if !claimed {
		log.Info("duplicate delivery skipped")
		return nil
	}

	if err := d.dispatch(ctx, log, env); err != nil {
		if relErr := d.guard.Release(ctx, key); relErr != nil {
			log.Error("release claim failed", "error", relErr)
		}
		return err
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, log *slog.Logger, env domain.Envelope) error {
	switch env.EventType {
	case domain.EventSearchRequestCreated:
		var p domain.SearchRequestCreated
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.RequestID == "" {
			log.Error("malformed search request payload dropped", "error", err)
			return nil
		}
		out, err := d.matcher.HandleSearchRequest(ctx, p.RequestID)
		if domain.IsNotFound(err) {
			log.Error("search request vanished, event dropped", "request_id", p.RequestID)
			return nil
		}
		if err != nil {
			return err
		}
		log.Info("matchmaking finished", "request_id", p.RequestID, "status", out.Status, "match_id", out.MatchID)

	case domain.EventCourtCreated:
		var p domain.CourtCreated
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.CourtID == "" {
			log.Error("malformed court payload dropped", "error", err)
			return nil
		}
		created, err := d.provisioner.ProvisionCourt(ctx, p.CourtID, d.horizonDays)
		if err != nil {
			return err
		}
		log.Info("initial provisioning finished", "court_id", p.CourtID, "created", created)
	}
	return nil
}
