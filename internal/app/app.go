// Package app assembles the filter pipeline from configuration for the commands.
package app

import (
	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/common/configtypes"
	"github.com/edgecomet/domfilter/internal/common/redis"
	"github.com/edgecomet/domfilter/internal/doccache"
	"github.com/edgecomet/domfilter/internal/fetch"
	"github.com/edgecomet/domfilter/internal/metrics"
	"github.com/edgecomet/domfilter/internal/parser"
	"github.com/edgecomet/domfilter/internal/pipeline"
)

// App holds the long-lived components built from one configuration
type App struct {
	Pipeline *pipeline.Pipeline
	Metrics  metrics.Recorder

	redis  *redis.Client
	logger *zap.Logger
}

// New builds the parser, fetcher and (when cache.enabled) the Redis document cache.
// recorder may be nil.
func New(cfg *configtypes.Config, recorder metrics.Recorder, logger *zap.Logger) (*App, error) {
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	client, err := fetch.NewClient(cfg.Fetch, recorder, logger)
	if err != nil {
		return nil, err
	}

	a := &App{Metrics: recorder, logger: logger}

	var fetcher fetch.Fetcher = client
	if cfg.Cache.Enabled {
		a.redis, err = redis.NewClient(&cfg.Cache.Redis, logger)
		if err != nil {
			return nil, err
		}
		store := doccache.NewStore(a.redis, cfg.Cache, recorder, logger)
		fetcher = fetch.NewCachedFetcher(client, store, recorder, logger)

		logger.Info("Document cache enabled",
			zap.String("redis", cfg.Cache.Redis.Addr),
			zap.String("compression", cfg.Cache.Compression),
			zap.Duration("ttl", cfg.Cache.TTL.ToDuration()))
	}

	a.Pipeline = pipeline.New(parser.New(cfg.Parser, logger), fetcher, recorder, logger)
	return a, nil
}

// Close releases the Redis connection, if any
func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}
