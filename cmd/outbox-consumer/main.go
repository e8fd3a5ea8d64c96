package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/padelbud/platform/internal/guard"
	"github.com/padelbud/platform/internal/infra"
	"github.com/padelbud/platform/internal/repository"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox-consumer connected to postgres")

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	breaker := guard.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerReset)
	poller := infra.NewOutboxPoller(pool, repository.NewOutboxRepository(), publisher, breaker,
		cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)

	logger.Info("outbox-consumer starting",
		"broker", cfg.EventBroker,
		"poll_interval", cfg.OutboxPollInterval,
		"batch_size", cfg.OutboxBatchSize,
	)
	if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("outbox-consumer shutting down")
	return nil
}

func newPublisher(cfg *infra.Config, logger *slog.Logger) (infra.Publisher, error) {
	switch cfg.EventBroker {
	case infra.BrokerKafka:
		return infra.NewKafkaProducer(cfg.KafkaBrokerList(), logger), nil
	case infra.BrokerAMQP:
		p, err := infra.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return nil, fmt.Errorf("connect amqp: %w", err)
		}
		return p, nil
	default:
		return infra.NewNopPublisher(logger), nil
	}
}
