package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCacheRepo struct{}

func (brokenCacheRepo) Get(context.Context, string, interface{}) error {
	return errors.New("redis down")
}

func (brokenCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("redis down")
}

func (brokenCacheRepo) DeleteByPattern(context.Context, string) error {
	return errors.New("redis down")
}

func TestReadThroughFallsBackWhenCacheFails(t *testing.T) {
	metrics := NewMetricsService()
	cache := NewCacheService(brokenCacheRepo{}, metrics, 0, nil, true)
	loads := 0

	for i := 0; i < 2; i++ {
		value, err := readThrough(context.Background(), cache, "courses:item:x", func() (string, error) {
			loads++
			return "loaded", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "loaded", value)
	}
	assert.Equal(t, 2, loads)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.cacheMisses))

	cache.Invalidate(context.Background(), "courses:*")
}

func TestReadThroughCachesOnlySuccess(t *testing.T) {
	repo := newCacheRepoMock()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	boom := errors.New("boom")

	_, err := readThrough(context.Background(), cache, "k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, repo.values)

	value, err := readThrough(context.Background(), cache, "k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, value)

	value, err = readThrough(context.Background(), cache, "k", func() (int, error) { return 0, boom })
	require.NoError(t, err)
	assert.Equal(t, 7, value)
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())

	disabled := NewCacheService(newCacheRepoMock(), nil, time.Minute, nil, false)
	var dest string
	assert.False(t, disabled.Get(context.Background(), "k", &dest))
}
