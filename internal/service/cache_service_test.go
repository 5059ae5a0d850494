package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedLoadsOnceThenHits(t *testing.T) {
	cache := NewCacheService(newCacheRepoStub(), NewMetricsService(), time.Minute, nil, true)
	loads := 0
	load := func(ctx context.Context) ([]string, error) {
		loads++
		return []string{"BE", "FR"}, nil
	}

	first, hit, err := cached(context.Background(), cache, "countries", 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := cached(context.Background(), cache, "countries", 0, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, loads)

	cache.Forget(context.Background(), "countries")
	_, hit, _ = cached(context.Background(), cache, "countries", 0, load)
	assert.False(t, hit)
	assert.Equal(t, 2, loads)
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	repo := newCacheRepoStub()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	boom := errors.New("db down")

	_, _, err := cached(context.Background(), cache, "k", 0, func(ctx context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, repo.values)
}

func TestDisabledCacheGrantsClaims(t *testing.T) {
	var nilCache *CacheService
	ok, err := nilCache.Claim(context.Background(), "ack:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	cache := NewCacheService(newCacheRepoStub(), nil, time.Minute, nil, true)
	ok, _ = cache.Claim(context.Background(), "ack:1", 0)
	assert.True(t, ok)
	ok, _ = cache.Claim(context.Background(), "ack:1", 0)
	assert.False(t, ok)
	cache.Release(context.Background(), "ack:1")
	ok, _ = cache.Claim(context.Background(), "ack:1", 0)
	assert.True(t, ok)

	cache.ForgetPrefix(context.Background(), "ack:")
}
