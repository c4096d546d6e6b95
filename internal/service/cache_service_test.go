package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type fakeCacheRepo struct {
	entries map[string][]byte
	getErr  error
	ttls    map[string]time.Duration
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	raw, ok := f.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = raw
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.entries {
		if strings.HasPrefix(key, prefix) {
			delete(f.entries, key)
		}
	}
	return nil
}

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	repo := newFakeCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, nil, CacheOptions{Enabled: true})
	ctx := context.Background()

	var out map[string]int
	hit, err := svc.Get(ctx, "earnings:t1:week", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "earnings:t1:week", map[string]int{"sessions": 2}, 0))
	assert.Equal(t, 5*time.Minute, repo.ttls["earnings:t1:week"])

	hit, err = svc.Get(ctx, "earnings:t1:week", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, out["sessions"])

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))

	require.NoError(t, svc.Invalidate(ctx, "earnings:t1:*"))
	hit, err = svc.Get(ctx, "earnings:t1:week", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := newFakeCacheRepo()
	repo.getErr = errors.New("redis down")
	svc := NewCacheService(repo, nil, nil, CacheOptions{Enabled: true, TTL: time.Minute})

	var out map[string]int
	hit, err := svc.Get(context.Background(), "k", &out)
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newFakeCacheRepo()
	svc := NewCacheService(repo, nil, nil, CacheOptions{TTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", 1, 0))
	assert.Empty(t, repo.entries)

	var out int
	hit, err := svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, svc.Enabled())
}

func TestCacheServiceNamespacesKeys(t *testing.T) {
	repo := newFakeCacheRepo()
	svc := NewCacheService(repo, nil, nil, CacheOptions{Enabled: true, Namespace: "tutorhub"})
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "earnings:t1:week", 3, time.Second))
	assert.Contains(t, repo.entries, "tutorhub:earnings:t1:week")
	assert.Equal(t, time.Second, repo.ttls["tutorhub:earnings:t1:week"])

	var out int
	hit, err := svc.Get(ctx, "earnings:t1:week", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, out)

	require.NoError(t, svc.Invalidate(ctx, "earnings:t1:*"))
	assert.Empty(t, repo.entries)
}
