package kpi

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryConfigCache(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryConfigCache()

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, []byte(`{"version":"3"}`), time.Minute))
	payload, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"version":"3"}`, string(payload))

	require.NoError(t, cache.Invalidate(ctx))
	_, ok, _ = cache.Get(ctx)
	assert.False(t, ok)
}

func TestRedisConfigCache(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	cache := NewRedisConfigCache(client, "kpi_test")

	require.NoError(t, cache.Set(ctx, []byte("payload"), time.Minute))
	assert.True(t, m.Exists("kpi_test:config:active"))

	payload, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", string(payload))

	m.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, []byte("payload"), time.Minute))
	require.NoError(t, cache.Invalidate(ctx))
	assert.False(t, m.Exists("kpi_test:config:active"))
}

func TestServiceConfigCacheInvalidatedOnUpdate(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(DefaultConfiguration())
	cache := NewInMemoryConfigCache()
	svc := NewService(store, nil, cache)

	cfg, err := svc.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", cfg.Version)
	_, cached, _ := cache.Get(ctx)
	assert.True(t, cached)

	_, _, err = svc.UpdateRatings(ctx, DefaultRatings(), "admin")
	require.NoError(t, err)

	cfg, err = svc.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", cfg.Version)
}
