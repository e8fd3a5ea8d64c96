package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer wraps a kafka-go writer for publishing messages.
type KafkaProducer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaProducer creates a Kafka producer for the given brokers.
func NewKafkaProducer(brokers []string, logger *slog.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	logger.Info("kafka producer initialized", "brokers", brokers)
	return &KafkaProducer{writer: w, logger: logger}
}

// Publish sends a message to the given topic. Keys hash to partitions so one
// aggregate's events stay ordered.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	})
}

// Close shuts down the Kafka writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads several topics as one consumer group and commits an
// offset only after the handler succeeded.
type KafkaConsumer struct {
	reader      *kafka.Reader
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

// NewKafkaConsumer creates a group consumer for topics.
func NewKafkaConsumer(brokers []string, groupID string, topics []string, logger *slog.Logger) *KafkaConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.FirstOffset,
	})

	logger.Info("kafka consumer initialized", "brokers", brokers, "group_id", groupID, "topics", topics)
	return &KafkaConsumer{reader: r, logger: logger, maxAttempts: 5, backoff: time.Second}
}

// Subscribe blocks, handing each message to handle. A message whose handler
// keeps failing stops the consumer with an error and is left uncommitted, so
// the group redelivers it after restart.
func (c *KafkaConsumer) Subscribe(ctx context.Context, handle MessageHandler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		msg := Message{Topic: m.Topic, Key: m.Key, Value: m.Value}
		if err := retry(ctx, c.maxAttempts, c.backoff, func() error { return handle(ctx, msg) }); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("kafka message handling failed",
				"topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
			return fmt.Errorf("handle %s@%d: %w", m.Topic, m.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset: %w", err)
		}
	}
}

// Close shuts down the Kafka reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// retry runs fn up to attempts times with linear backoff.
func retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i) * backoff):
		}
	}
	return err
}
