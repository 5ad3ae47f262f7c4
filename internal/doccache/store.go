// Package doccache keeps fetched documents in Redis, compressed, keyed by normalized URL.
package doccache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/common/configtypes"
	"github.com/edgecomet/domfilter/internal/common/urlutil"
	"github.com/edgecomet/domfilter/internal/metrics"
	"github.com/edgecomet/domfilter/pkg/types"
)

// KV is the subset of the Redis client the store needs
type KV interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Store is a TTL-bounded document cache
type Store struct {
	kv          KV
	ttl         time.Duration
	compression string
	prefix      string
	metrics     metrics.Recorder
	logger      *zap.Logger
}

// NewStore wraps kv using TTL, compression and key prefix from cfg
func NewStore(kv KV, cfg configtypes.CacheConfig, recorder metrics.Recorder, logger *zap.Logger) *Store {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Store{
		kv:          kv,
		ttl:         cfg.TTL.ToDuration(),
		compression: cfg.Compression,
		prefix:      cfg.KeyPrefix,
		metrics:     recorder,
		logger:      logger,
	}
}

// Key returns the Redis key for rawURL: prefix:doc:<xxhash64 of the normalized URL>
func (s *Store) Key(rawURL string) (string, error) {
	normalized, err := urlutil.NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:doc:%016x", s.prefix, xxhash.Sum64String(normalized)), nil
}

// Get returns the cached body for rawURL. An undecodable entry is deleted and
// reported as a miss so the caller refetches.
func (s *Store) Get(ctx context.Context, rawURL string) ([]byte, bool, error) {
	key, err := s.Key(rawURL)
	if err != nil {
		return nil, false, err
	}

	entry, found, err := s.kv.GetBytes(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		s.metrics.RecordCacheMiss()
		return nil, false, nil
	}

	body, algorithm, err := Decode(entry)
	if err != nil {
		if errors.Is(err, ErrDecompression) {
			s.metrics.RecordDecompressionError(algorithm)
			s.metrics.RecordCacheMiss()
			s.logger.Warn("Dropping undecodable cache entry",
				zap.String("key", key),
				zap.String("url", rawURL),
				zap.Error(err))
			if delErr := s.Invalidate(ctx, rawURL); delErr != nil {
				s.logger.Warn("Failed to delete cache entry", zap.String("key", key), zap.Error(delErr))
			}
			return nil, false, nil
		}
		return nil, false, err
	}

	s.metrics.RecordCacheHit()
	s.logger.Debug("Document cache hit",
		zap.String("url", rawURL),
		zap.Int("size", len(body)),
		zap.String("compression", algorithm))
	return body, true, nil
}

// Put stores body for rawURL with the configured TTL
func (s *Store) Put(ctx context.Context, rawURL string, body []byte) error {
	key, err := s.Key(rawURL)
	if err != nil {
		return err
	}

	entry, algorithm, err := Encode(body, s.compression)
	if err != nil {
		return err
	}
	if algorithm != types.CompressionNone {
		s.metrics.RecordCompression(algorithm, len(body), len(entry)-1)
	}

	if err := s.kv.Set(ctx, key, entry, s.ttl); err != nil {
		return err
	}

	s.logger.Debug("Document cached",
		zap.String("url", rawURL),
		zap.Int("size", len(body)),
		zap.Int("stored", len(entry)),
		zap.Duration("ttl", s.ttl))
	return nil
}

// Invalidate removes the entry for rawURL
func (s *Store) Invalidate(ctx context.Context, rawURL string) error {
	key, err := s.Key(rawURL)
	if err != nil {
		return err
	}
	return s.kv.Del(ctx, key)
}
