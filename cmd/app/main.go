package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/tourbooking/config"
	"github.com/Domenick1991/tourbooking/internal/bootstrap"
	"github.com/Domenick1991/tourbooking/internal/cache"
	"github.com/Domenick1991/tourbooking/internal/kafka"
	"github.com/Domenick1991/tourbooking/internal/notification"
	"github.com/Domenick1991/tourbooking/internal/observability"
	"github.com/Domenick1991/tourbooking/internal/rabbitmq"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/Domenick1991/tourbooking/internal/repository/memory"
	"github.com/Domenick1991/tourbooking/internal/service/catalog"
	"github.com/Domenick1991/tourbooking/internal/service/reservation"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Booking.Location()
	if err != nil {
		return err
	}

	if cfg.Observability.TracingEnabled {
		tp, err := observability.InitTracing(cfg.Observability)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := observability.ShutdownTracing(shutdownCtx, tp); err != nil {
				logger.Warn().Err(err).Msg("tracing shutdown failed")
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	var checks []bootstrap.Check
	catalogRepo, reservationRepo, closeStorage, err := openStorage(ctx, cfg, logger, &checks)
	if err != nil {
		return err
	}
	defer closeStorage()

	var catalogCache catalog.Cache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.CatalogCacheTTL())
		defer redisCache.Close()
		catalogCache = redisCache
		checks = append(checks, bootstrap.Check{Name: "redis", Probe: redisCache.Ping})
	}
	catalogService := catalog.NewCatalogService(catalogRepo, catalogCache, logger)

	publisher, closePublisher := openPublisher(cfg, logger, &checks)
	defer closePublisher()
	dispatcher := notification.NewDispatcher(publisher, notification.Settings{
		Async:        cfg.Notifications.Async,
		Timeout:      cfg.Notifications.Timeout(),
		FailureRatio: cfg.Notifications.BreakerFailureRatio,
		OpenTimeout:  cfg.Notifications.BreakerOpen(),
		MinRequests:  cfg.Notifications.BreakerMinRequests,
	}, logger, metrics)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Notifications.Timeout())
		defer cancel()
		if err := dispatcher.Close(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("pending notifications dropped")
		}
	}()

	reservationService := reservation.NewReservationService(
		catalogService,
		reservationRepo,
		reservation.WithNotifier(dispatcher),
		reservation.WithMetrics(metrics),
		reservation.WithLogger(logger),
		reservation.WithLocation(loc),
		reservation.WithConfirmationPrefix(cfg.Booking.ConfirmationPrefix),
		reservation.WithMaxCodeRetries(cfg.Booking.MaxCodeRetries),
		reservation.WithDefaultCurrency(cfg.Booking.Currency),
	)

	deps := bootstrap.Dependencies{
		Reservations: reservationService,
		Location:     loc,
		Checks:       checks,
		Logger:       logger,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Gatherer = registry
	}
	return bootstrap.Run(ctx, cfg, deps)
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger, checks *[]bootstrap.Check) (repository.CatalogRepository, repository.ReservationRepository, func(), error) {
	switch cfg.Storage.Driver {
	case "memory":
		store := memory.NewStore()
		if cfg.Storage.SeedFile != "" {
			seed, err := memory.LoadSeedFile(cfg.Storage.SeedFile)
			if err != nil {
				return nil, nil, nil, err
			}
			store.Load(seed)
		}
		logger.Warn().Msg("using in-memory storage, reservations are lost on restart")
		return store, store, func() {}, nil
	default:
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parse postgres config: %w", err)
		}
		if cfg.Database.MaxConns > 0 {
			poolCfg.MaxConns = cfg.Database.MaxConns
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Storage.AutoMigrate {
			if err := repository.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, nil, err
			}
		}
		*checks = append(*checks, bootstrap.Check{Name: "postgres", Probe: pool.Ping})
		return repository.NewCatalogRepository(pool), repository.NewReservationRepository(pool), pool.Close, nil
	}
}

func openPublisher(cfg *config.Config, logger zerolog.Logger, checks *[]bootstrap.Check) (notification.Publisher, func()) {
	switch cfg.Notifications.Driver {
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ReservationsTopic, logger)
		*checks = append(*checks, bootstrap.Check{Name: "kafka", Probe: producer.CheckConnection})
		return producer, func() {
			if err := producer.Close(); err != nil {
				logger.Warn().Err(err).Msg("kafka producer close failed")
			}
		}
	case "rabbitmq":
		publisher := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		return publisher, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn().Err(err).Msg("rabbitmq publisher close failed")
			}
		}
	default:
		return notification.Discard{}, func() {}
	}
}
