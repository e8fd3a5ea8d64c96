package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/padelbud/platform/internal/allocation"
	"github.com/padelbud/platform/internal/cache"
	"github.com/padelbud/platform/internal/guard"
	"github.com/padelbud/platform/internal/infra"
	"github.com/padelbud/platform/internal/matchmaking"
	"github.com/padelbud/platform/internal/provisioning"
	"github.com/padelbud/platform/internal/search"
	"github.com/padelbud/platform/internal/store"
	"github.com/padelbud/platform/internal/trigger"
)

// amqpPrefetch bounds unacknowledged deliveries held by the worker.
const amqpPrefetch = 16

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("worker failed", "error", err)
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
	logger.Info("worker connected to postgres")

	pg := store.NewPostgresStore(pool, logger)

	var (
		clubCache cache.Store         = cache.NewInMemoryStore()
		delivery  guard.DeliveryGuard = guard.NewMemoryGuard()
	)
	if cfg.RedisEnabled {
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		clubCache = cache.NewRedisStore(rdb)
		delivery = guard.NewRedisGuard(rdb, "padel:delivery:")
		logger.Info("worker connected to redis")
	}
	clubs := cache.NewClubDirectory(pg, clubCache, cfg.SharedClubCacheTTL(), logger)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	finder := search.NewService(clubs, pg, pg, pg, logger,
		search.WithNearbyLimit(cfg.NearbyClubLimit),
		search.WithWindow(cfg.MatchWindow),
	)
	matcher := matchmaking.NewEngine(pg, finder, allocation.NewCommitter(pg, logger), logger,
		matchmaking.WithGroupSize(cfg.MatchGroupSize),
	)
	provisioner := provisioning.NewEngine(clubs, pg, pg, logger,
		provisioning.WithLocation(loc),
		provisioning.WithPriceCents(cfg.DefaultSlotPriceCents),
		provisioning.WithConcurrency(cfg.ProvisionConcurrency),
	)
	dispatcher := trigger.NewDispatcher(matcher, provisioner, delivery, cfg.DeliveryClaimTTL, cfg.ProvisionHorizonDays, logger)

	scheduler := infra.NewScheduler(loc, logger)
	err = scheduler.Add(ctx, cfg.ProvisionSchedule, "provision-all", func(ctx context.Context) error {
		_, err := provisioner.ProvisionAll(ctx, cfg.ProvisionHorizonDays)
		return err
	})
	if err != nil {
		return fmt.Errorf("schedule provisioning: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })

	sub, err := newSubscriber(cfg, logger)
	if err != nil {
		return err
	}
	if sub != nil {
		defer sub.Close()
		g.Go(func() error { return sub.Subscribe(gctx, dispatcher.Handle) })
	} else {
		logger.Warn("event broker disabled, only scheduled provisioning runs")
	}

	logger.Info("worker starting",
		"broker", cfg.EventBroker,
		"provision_schedule", cfg.ProvisionSchedule,
		"horizon_days", cfg.ProvisionHorizonDays,
	)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("worker stopped")
	return nil
}

func newSubscriber(cfg *infra.Config, logger *slog.Logger) (infra.Subscriber, error) {
	switch cfg.EventBroker {
	case infra.BrokerKafka:
		return infra.NewKafkaConsumer(cfg.KafkaBrokerList(), cfg.KafkaGroupID, trigger.Topics(), logger), nil
	case infra.BrokerAMQP:
		c, err := infra.NewAMQPConsumer(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, trigger.Topics(), amqpPrefetch, logger)
		if err != nil {
			return nil, fmt.Errorf("connect amqp: %w", err)
		}
		return c, nil
	default:
		return nil, nil
	}
}
