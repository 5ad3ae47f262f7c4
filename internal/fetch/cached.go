package fetch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/doccache"
	"github.com/edgecomet/domfilter/internal/metrics"
)

// CachedFetcher serves documents from the store and fills it on a miss.
// Cache failures are logged and never fail the fetch.
type CachedFetcher struct {
	next    Fetcher
	store   *doccache.Store
	metrics metrics.Recorder
	logger  *zap.Logger
}

var _ Fetcher = (*CachedFetcher)(nil)

// NewCachedFetcher wraps next with store
func NewCachedFetcher(next Fetcher, store *doccache.Store, recorder metrics.Recorder, logger *zap.Logger) *CachedFetcher {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &CachedFetcher{
		next:    next,
		store:   store,
		metrics: recorder,
		logger:  logger,
	}
}

// Fetch returns the cached body for rawURL, or fetches and caches it
func (f *CachedFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()

	body, found, err := f.store.Get(ctx, rawURL)
	switch {
	case err != nil:
		f.logger.Warn("Document cache lookup failed, fetching from origin",
			zap.String("url", rawURL),
			zap.Error(err))
	case found:
		f.metrics.RecordFetch(hostLabel(rawURL), metrics.FetchCached, time.Since(start))
		return body, nil
	}

	body, err = f.next.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if err := f.store.Put(ctx, rawURL, body); err != nil {
		f.logger.Warn("Failed to cache document",
			zap.String("url", rawURL),
			zap.Error(err))
	}
	return body, nil
}
