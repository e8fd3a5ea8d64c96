package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const amqpKeyHeader = "x-message-key"

// AMQPPublisher publishes to a durable topic exchange; the topic is the routing key.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewAMQPPublisher dials RabbitMQ and declares the exchange.
func NewAMQPPublisher(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, ch, err := openTopicExchange(url, exchange)
	if err != nil {
		return nil, err
	}
	logger.Info("amqp publisher initialized", "exchange", exchange)
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	return p.ch.PublishWithContext(ctx, p.exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{amqpKeyHeader: string(key)},
		Body:         value,
	})
}

func (p *AMQPPublisher) Close() error {
	_ = p.ch.Close()
	return p.conn.Close()
}

// AMQPConsumer consumes a durable queue bound to the given routing keys.
// Successful deliveries are acked. Failed ones are retried with backoff and
// then nacked with requeue.
type AMQPConsumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	queue       string
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

// acknowledger is the settle half of an amqp.Delivery.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// NewAMQPConsumer declares the queue, binds it to keys and sets a prefetch.
func NewAMQPConsumer(url, exchange, queue string, keys []string, prefetch int, logger *slog.Logger) (*AMQPConsumer, error) {
	conn, ch, err := openTopicExchange(url, exchange)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*AMQPConsumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fail(fmt.Errorf("declare queue: %w", err))
	}
	for _, key := range keys {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			return fail(fmt.Errorf("bind %s: %w", key, err))
		}
	}
	if prefetch <= 0 {
		prefetch = 8
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fail(fmt.Errorf("set qos: %w", err))
	}

	logger.Info("amqp consumer initialized", "exchange", exchange, "queue", q.Name, "keys", keys)
	return &AMQPConsumer{conn: conn, ch: ch, queue: q.Name, logger: logger, maxAttempts: 5, backoff: time.Second}, nil
}

// Subscribe blocks until ctx is done or the channel closes.
func (c *AMQPConsumer) Subscribe(ctx context.Context, handle MessageHandler) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("amqp delivery channel closed")
			}
			msg := Message{Topic: d.RoutingKey, Value: d.Body}
			if key, ok := d.Headers[amqpKeyHeader].(string); ok {
				msg.Key = []byte(key)
			}

			if err := c.settle(ctx, d, d.RoutingKey, msg, handle); err != nil {
				return err
			}
		}
	}
}

// settle runs handle with retries and acks or requeues the delivery.
func (c *AMQPConsumer) settle(ctx context.Context, d acknowledger, routingKey string, msg Message, handle MessageHandler) error {
	if err := retry(ctx, c.maxAttempts, c.backoff, func() error { return handle(ctx, msg) }); err != nil {
		c.logger.Error("amqp message handling failed", "routing_key", routingKey, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			return fmt.Errorf("nack: %w", nackErr)
		}
		return nil
	}
	if err := d.Ack(false); err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	return nil
}

func (c *AMQPConsumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

func openTopicExchange(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	return conn, ch, nil
}
