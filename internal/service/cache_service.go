package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
)

// CacheRepository abstracts the key-value store behind CacheService.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// CacheService caches reference data and deduplicates acknowledgements. A
// nil or disabled service misses on every read and grants every claim.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

func (s *CacheService) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.defaultTTL
	}
	return ttl
}

// Get decodes the entry under key into dest and reports a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	hit := err == nil
	s.metrics.RecordCacheOperation(hit, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return hit, nil
}

// Set stores value under key. A zero ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.Set(ctx, key, value, s.ttl(ttl)); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Forget drops the given keys.
func (s *CacheService) Forget(ctx context.Context, keys ...string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// ForgetPrefix drops every key starting with prefix.
func (s *CacheService) ForgetPrefix(ctx context.Context, prefix string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPrefix(ctx, prefix); err != nil {
		s.logger.Warn("cache prefix delete failed", zap.String("prefix", prefix), zap.Error(err))
	}
}

// Claim marks key as taken for ttl and reports whether this caller got it
// first.
func (s *CacheService) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if !s.Enabled() {
		return true, nil
	}
	ok, err := s.repo.SetNX(ctx, key, s.ttl(ttl))
	if err != nil {
		s.logger.Warn("cache claim failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return ok, nil
}

// Release drops a claim so the key can be processed again.
func (s *CacheService) Release(ctx context.Context, key string) {
	s.Forget(ctx, key)
}

// cached returns the value stored under key, or calls load and stores its
// result. The boolean reports a cache hit. Store failures never fail the read.
func cached[T any](ctx context.Context, cache *CacheService, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	var value T
	if hit, _ := cache.Get(ctx, key, &value); hit {
		return value, true, nil
	}
	value, err := load(ctx)
	if err != nil {
		return value, false, err
	}
	_ = cache.Set(ctx, key, value, ttl)
	return value, false, nil
}
