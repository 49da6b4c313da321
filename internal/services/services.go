package services

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/aggregator"
	"github.com/temcen/vocabimg/internal/collection"
	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/internal/database"
	"github.com/temcen/vocabimg/internal/imaging"
	"github.com/temcen/vocabimg/internal/messaging"
	"github.com/temcen/vocabimg/internal/metrics"
	"github.com/temcen/vocabimg/internal/quality"
	"github.com/temcen/vocabimg/internal/ratelimit"
	"github.com/temcen/vocabimg/internal/sources"
	"github.com/temcen/vocabimg/internal/storage"
	"github.com/temcen/vocabimg/internal/validation"
)

// EventSink is the closable side of the event publisher.
type EventSink interface {
	collection.EventPublisher
	Close() error
}

type Services struct {
	Metrics      *metrics.Metrics
	Auth         *AuthService
	Health       *HealthService
	Limiter      ratelimit.Limiter
	Sources      *sources.Registry
	Aggregator   *aggregator.Aggregator
	Processor    *imaging.Processor
	Quality      *quality.Engine
	Store        *storage.PostgresStore
	Progress     collection.Store
	Files        collection.FileStore
	Events       EventSink
	Strategies   *validation.StrategyStore
	Orchestrator *collection.Orchestrator
	Scheduler    *collection.Scheduler
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database, reg prometheus.Registerer) (*Services, error) {
	m := metrics.New(reg)

	limiter, err := newLimiter(cfg, db, logger)
	if err != nil {
		return nil, err
	}

	registry := sources.NewRegistryFromConfig(cfg.Sources, limiter, m, logger)
	if len(registry.Names()) == 0 {
		logger.Warn("No image sources configured, searches will report no sources available")
	}

	agg := aggregator.New(registry, aggregator.Options{
		MaxResultsPerSource: cfg.Collection.MaxResultsPerSource,
		MaxTotalResults:     cfg.Collection.MaxTotalResults,
		Timeout:             cfg.Collection.SearchTimeout,
	}, m, logger)

	processor := imaging.NewProcessor(imaging.OptionsFromConfig(cfg.Imaging), m, logger)
	engine := quality.NewEngine(
		quality.ThresholdsFromConfig(cfg.Quality),
		cfg.Collection.MinQualityThreshold,
		cfg.Collection.AutoApprovalThreshold,
		processor,
		m,
		logger,
	)

	store := storage.NewPostgresStore(db.PG, logger)
	if cfg.Storage.Migrate {
		if err := store.Migrate(context.Background()); err != nil {
			return nil, err
		}
	}

	var progress collection.Store = store
	if db.Redis != nil {
		progress = storage.NewProgressCache(store, db.Redis, cfg.Redis.ProgressTTL, logger)
	}

	files, err := storage.NewFileStore(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file store: %w", err)
	}

	var events EventSink = messaging.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		events = messaging.NewEventBus(cfg.Kafka, logger)
	} else {
		logger.Info("Kafka not configured, collection events are not published")
	}

	schemaValidator, err := validation.NewSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize schema validator: %w", err)
	}
	defaults := collection.NewDefaults(cfg.Collection)
	strategies := validation.NewStrategyStore(schemaValidator, defaults, logger)
	if n, err := strategies.LoadDir(cfg.Strategies.Dir); err != nil {
		logger.WithError(err).WithField("loaded", n).Warn("Some strategy documents were rejected")
	} else if n > 0 {
		logger.WithField("loaded", n).Info("Strategy documents loaded")
	}

	orchestrator := collection.NewOrchestrator(
		agg,
		registry,
		processor,
		engine,
		progress,
		files,
		events,
		defaults,
		m,
		logger,
	)
	scheduler := collection.NewScheduler(
		cfg.Collection.SchedulerSpec,
		cfg.Collection.SchedulerBatchSize,
		progress,
		orchestrator,
		strategies,
		logger,
	)

	health := NewHealthService(m, logger)
	health.Register("postgresql", true, db.Ping)
	if db.Redis != nil {
		health.Register("redis", cfg.RateLimit.Backend == "redis", db.PingRedis)
	}

	return &Services{
		Metrics:      m,
		Auth:         NewAuthService(cfg.Auth, logger),
		Health:       health,
		Limiter:      limiter,
		Sources:      registry,
		Aggregator:   agg,
		Processor:    processor,
		Quality:      engine,
		Store:        store,
		Progress:     progress,
		Files:        files,
		Events:       events,
		Strategies:   strategies,
		Orchestrator: orchestrator,
		Scheduler:    scheduler,
	}, nil
}

func newLimiter(cfg *config.Config, db *database.Database, logger *logrus.Logger) (ratelimit.Limiter, error) {
	opts := ratelimit.OptionsFromConfig(cfg.RateLimit)
	switch cfg.RateLimit.Backend {
	case "", "memory":
		return ratelimit.NewMemoryLimiter(opts), nil
	case "redis":
		if db.Redis == nil {
			return nil, fmt.Errorf("rate_limit.backend is redis but redis.url is empty")
		}
		return ratelimit.NewRedisLimiter(db.Redis, opts, logger), nil
	default:
		return nil, fmt.Errorf("unknown rate_limit.backend %q", cfg.RateLimit.Backend)
	}
}

// Close releases what the services own. Database connections are closed by their owner.
func (s *Services) Close() error {
	s.Scheduler.Stop()
	return s.Events.Close()
}
