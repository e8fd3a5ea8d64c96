package infra

import (
	"context"
	"log/slog"
)

// Message is one broker delivery.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Publisher sends messages to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
	Close() error
}

// MessageHandler processes one delivery. A nil return acknowledges it.
type MessageHandler func(ctx context.Context, msg Message) error

// Subscriber feeds deliveries of its topics to a handler until ctx is done.
// A handler error means the delivery must be redelivered.
type Subscriber interface {
	Subscribe(ctx context.Context, handle MessageHandler) error
	Close() error
}

// NopPublisher drops every message. Used when EVENT_BROKER=none.
type NopPublisher struct {
	logger *slog.Logger
}

// NewNopPublisher creates a publisher that discards messages.
func NewNopPublisher(logger *slog.Logger) *NopPublisher {
	logger.Info("event broker disabled")
	return &NopPublisher{logger: logger}
}

func (p *NopPublisher) Publish(_ context.Context, topic string, key, _ []byte) error {
	p.logger.Info("outbox event not forwarded", "topic", topic, "key", string(key))
	return nil
}

func (p *NopPublisher) Close() error { return nil }
