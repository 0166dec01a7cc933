package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/spacesedan/reelscore/config"
	"github.com/spacesedan/reelscore/internal/classifier"
	"github.com/spacesedan/reelscore/internal/clients"
	"github.com/spacesedan/reelscore/internal/clients/kafka_client"
	"github.com/spacesedan/reelscore/internal/db"
	"github.com/spacesedan/reelscore/internal/monitoring"
	"github.com/spacesedan/reelscore/internal/reviews"
	"github.com/spacesedan/reelscore/internal/sentiment"
)

// App holds the process-wide components built from a Config.
type App struct {
	Engine       *sentiment.Engine
	Store        db.Store
	Reviews      *reviews.Service
	CacheHealthy *atomic.Bool

	closers []func()
}

// NewEngine builds the scoring engine. The model is not loaded until the
// first non-blank text is scored.
func NewEngine(cfg config.Config) (*sentiment.Engine, error) {
	load := classifier.NewLoader(classifier.Options{
		Backend:        cfg.ScoringBackend,
		ModelDir:       cfg.ModelDir,
		ORTLibraryPath: cfg.ORTLibraryPath,
	})
	return sentiment.NewEngine(load, sentiment.EmotionPartition)
}

func NewStore(ctx context.Context, cfg config.Config) (db.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreDynamoDB:
		client, err := clients.NewDynamoDBClient(ctx, clients.AWSConfig{
			Endpoint: cfg.AWSEndpoint,
			Region:   cfg.AWSRegion,
		})
		if err != nil {
			return nil, err
		}
		return db.NewDynamoStore(client), nil
	case config.StoreFile, "":
		return db.NewFileStore(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// New wires the engine, store and review service. The cache and event
// publisher are optional: a failed connection is logged and the feature is
// left off.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Engine: engine, Store: store}
	a.closers = append(a.closers, func() {
		if err := engine.Close(); err != nil {
			slog.Warn("[App] Failed to release model", slog.String("error", err.Error()))
		}
	})

	var opts []reviews.Option

	if cfg.CacheEnabled() {
		cache, err := clients.NewValkeyClient(clients.ValkeyConfig{
			Address:  cfg.ValkeyAddress,
			Password: cfg.ValkeyPassword,
			TLS:      cfg.ValkeyTLS,
		})
		if err != nil {
			slog.Warn("[App] Summary cache disabled", slog.String("error", err.Error()))
		} else {
			a.CacheHealthy = &atomic.Bool{}
			a.CacheHealthy.Store(true)
			go monitoring.MonitorCacheHealth(ctx, cache, a.CacheHealthy, monitoring.HEALTHCHECK_INTERVAL)

			opts = append(opts, reviews.WithCache(cache, a.CacheHealthy))
			a.closers = append(a.closers, cache.Close)
		}
	}

	if cfg.EventsEnabled() {
		producer, err := kafka_client.NewProducer(kafka_client.KafkaConfig{
			Broker: cfg.KafkaBroker,
			Topic:  cfg.KafkaReviewTopic,
		})
		if err != nil {
			slog.Warn("[App] Review events disabled", slog.String("error", err.Error()))
		} else {
			opts = append(opts, reviews.WithEvents(producer))
			a.closers = append(a.closers, producer.Close)
		}
	}

	a.Reviews = reviews.NewService(store, engine, opts...)
	return a, nil
}

// Close releases components in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
