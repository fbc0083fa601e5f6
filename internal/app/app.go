// Package app assembles the shipping gateway: storage, cache, carrier
// providers, rule and fallback engines, event publishing, and the HTTP API.
package app

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"

	"shipping-gateway/internal/aggregator"
	"shipping-gateway/internal/auth"
	"shipping-gateway/internal/common/cache"
	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/config"
	"shipping-gateway/internal/events"
	"shipping-gateway/internal/fallback"
	"shipping-gateway/internal/handlers"
	"shipping-gateway/internal/providers"
	"shipping-gateway/internal/providers/dhl"
	"shipping-gateway/internal/providers/fallbackprovider"
	"shipping-gateway/internal/providers/fedex"
	"shipping-gateway/internal/providers/shipstream"
	"shipping-gateway/internal/providers/ups"
	"shipping-gateway/internal/ratecache"
	"shipping-gateway/internal/ratelimit"
	"shipping-gateway/internal/rules"
	"shipping-gateway/internal/server"
	"shipping-gateway/internal/storage"
)

// tokenRefreshSchedule re-fetches expiring carrier OAuth tokens so the
// request path almost never blocks on token acquisition.
const tokenRefreshSchedule = "@every 1m"

// App holds the assembled application.
type App struct {
	Config    *config.Config
	Store     storage.Store
	Cache     cache.Cache
	Registry  *providers.Registry
	Publisher events.Publisher
	Server    *server.Server
	Logger    logging.Logger

	redisClient *redis.Client
	cron        *cron.Cron
}

// New assembles the application from configuration. Callers own calling
// Close when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.GetGlobalLogger().WithFields(logging.String("component", "app"))
	app := &App{Config: cfg, Logger: logger}

	if err := app.initStorage(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		return nil, err
	}
	if err := app.initPublisher(ctx); err != nil {
		return nil, err
	}
	app.initHTTP()
	return app, nil
}

func (a *App) initStorage() error {
	dsn := a.Config.DatabasePath
	if a.Config.StorageType == storage.TypePostgres {
		dsn = a.Config.DatabaseURL
	}
	store, err := storage.NewStore(a.Config.StorageType, dsn, a.Config.EncryptionKey)
	if err != nil {
		return err
	}
	a.Store = store
	a.Logger.Info("Storage initialized", logging.String("type", a.Config.StorageType))
	return nil
}

func (a *App) initCache() error {
	switch a.Config.CacheType {
	case "local":
		a.Cache = cache.NewLocalCache(5*time.Minute, 10*time.Minute)
	case "redis":
		db, err := strconv.Atoi(a.Config.RedisDB)
		if err != nil {
			return errors.ConfigError("REDIS_DB must be numeric: " + a.Config.RedisDB)
		}
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     a.Config.RedisAddress,
			Password: a.Config.RedisPassword,
			DB:       db,
		})
		a.Cache = cache.NewRedisCache(a.redisClient, "shipping:")
	default:
		return errors.ConfigError("unknown cache type: " + a.Config.CacheType)
	}
	a.Logger.Info("Cache initialized", logging.String("type", a.Config.CacheType))
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	publisher, err := events.NewPublisher(ctx, events.Config{
		Backend: a.Config.EventsBackend,
		RabbitMQ: events.RabbitMQConfig{
			URL:      a.Config.RabbitMQURL,
			Exchange: a.Config.RabbitMQExchange,
		},
		Kafka: events.KafkaConfig{
			Brokers: a.Config.KafkaBrokers,
			Topic:   a.Config.KafkaTopic,
		},
		AWS: events.AWSConfig{
			Region:          a.Config.AWSRegion,
			TopicARN:        a.Config.AWSSNSTopicARN,
			QueueURL:        a.Config.AWSSQSQueueURL,
			AccessKeyID:     a.Config.AWSAccessKeyID,
			SecretAccessKey: a.Config.AWSSecretAccessKey,
		},
		GCP: events.GCPConfig{
			ProjectID: a.Config.GCPProjectID,
			Topic:     a.Config.GCPPubSubTopic,
		},
	}, a.Logger)
	if err != nil {
		return err
	}
	a.Publisher = publisher
	if a.Config.EventsBackend != events.BackendNone {
		a.Logger.Info("Event publisher initialized", logging.String("backend", a.Config.EventsBackend))
	}
	return nil
}

func (a *App) initHTTP() {
	logger := logging.GetGlobalLogger()
	tokens := providers.NewTokenCache(&http.Client{Timeout: 10 * time.Second}, logger)

	a.Registry = providers.NewRegistry()
	a.Registry.Register(fedex.New(fedex.Config{BaseURL: a.Config.FedExBaseURL}, tokens, logger))
	a.Registry.Register(ups.New(ups.Config{BaseURL: a.Config.UPSBaseURL}, tokens, logger))
	a.Registry.Register(dhl.New(dhl.Config{BaseURL: a.Config.DHLBaseURL}, logger))
	a.Registry.Register(shipstream.New(shipstream.Config{BaseURL: a.Config.ShipStreamBaseURL}, logger))
	a.Registry.Register(fallbackprovider.New())

	rc := ratecache.New(a.Cache, a.Config.RateSnapshotTTL, a.Config.RateRedemptionTTL, logger)
	fallbackEngine := fallback.New(rc, logger)
	ruleEngine := rules.NewEngine(a.Store, rules.NewEvaluator(logger), logger)

	rateService := aggregator.New(a.Registry, ruleEngine, fallbackEngine, rc, a.Store, a.Publisher, a.Config.CarrierTimeout, logger)
	labelResolver := aggregator.NewLabelResolver(a.Registry, rc, a.Store, a.Publisher, logger)
	trackingResolver := aggregator.NewTrackingResolver(a.Registry, a.Store, logger)

	authHandler := auth.New(a.Config.JWTSecret, 24*time.Hour)

	limiter := ratelimit.New(a.redisClient, ratelimit.Config{
		Limit:  a.Config.RateLimitPerMinute,
		Window: time.Minute,
	}, logger)

	h := handlers.New(a.Store, rateService, labelResolver, trackingResolver, authHandler, a.healthCheck, logger)
	a.Server = server.New(h.Router(limiter.Middleware), a.Config.Port)

	a.cron = cron.New()
	a.cron.AddFunc(tokenRefreshSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		tokens.RefreshExpiring(ctx)
	})
}

// healthCheck reports whether the storage and cache backends are reachable.
func (a *App) healthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := a.Store.Ping(ctx); err != nil {
		return err
	}
	return a.Cache.Ping(ctx)
}

// Start begins serving and starts background jobs.
func (a *App) Start() error {
	a.cron.Start()
	return a.Server.Start()
}

// Close releases every resource the app holds.
func (a *App) Close() {
	if a.cron != nil {
		a.cron.Stop()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warn("Failed to close event publisher", logging.Err(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.Logger.Warn("Failed to close redis client", logging.Err(err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn("Failed to close storage", logging.Err(err))
		}
	}
}
