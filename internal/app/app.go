// Package app assembles the components shared by the commands: metrics,
// the optional Redis cache tier and the analytics engine.
package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/analytics"
	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/internal/observability/health"
	"github.com/inferloop/patternscope/internal/observability/metrics"
	"github.com/inferloop/patternscope/internal/storage"
	redisstore "github.com/inferloop/patternscope/internal/storage/implementations/redis"
)

// App holds the wired components of one process.
type App struct {
	Config  config.Config
	Logger  *logrus.Logger
	Metrics *metrics.PrometheusMetrics
	Engine  *analytics.Engine
	Storage *storage.Factory
	Health  *health.Monitor
}

// New wires an App from cfg. An unreachable Redis tier is logged and
// skipped; the in-process caches keep working.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*App, error) {
	m, err := metrics.NewPrometheusMetrics(metrics.DefaultPrometheusConfig(), logger)
	if err != nil {
		return nil, err
	}

	monitor := health.NewMonitor(logger)
	opts := []analytics.Option{analytics.WithMetrics(m)}
	if cfg.Cache.Enabled && cfg.Cache.Remote.Enabled {
		store, connected := connectRedis(ctx, cfg.Cache.Remote, logger)
		if connected {
			opts = append(opts, analytics.WithRemoteCache(store))
		}
		if store != nil {
			monitor.Register("redis", false, cfg.Cache.Remote.DialTimeout, store.Ping)
		}
	}

	engine, err := analytics.NewEngine(cfg, logger, opts...)
	if err != nil {
		return nil, err
	}
	monitor.Register("engine", true, 0, func(context.Context) error {
		return engine.Config().Validate()
	})

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Engine:  engine,
		Storage: storage.NewFactory(cfg.Storage, logger, m),
		Health:  monitor,
	}, nil
}

// Close releases the engine and its cache tiers.
func (a *App) Close() error {
	return a.Engine.Close()
}

// connectRedis returns the store, if one could be configured, and whether
// it is connected.
func connectRedis(ctx context.Context, cfg config.RemoteCacheConfig, logger *logrus.Logger) (*redisstore.RedisStore, bool) {
	store, err := redisstore.NewRedisStore(&cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis cache tier unavailable, using in-process caches only")
		return nil, false
	}
	if err := store.Connect(ctx); err != nil {
		logger.WithError(err).Warn("Redis cache tier unavailable, using in-process caches only")
		return store, false
	}
	return store, true
}
