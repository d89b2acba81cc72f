package data

import (
	"context"
	"testing"
	"time"

	"InferGate/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) CacheClient {
	rdb, _ := setupTestRedis(t)
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCacheClient(rdb)
}

func TestCache_SetAndGet(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	snapshot := &model.HealthSnapshot{
		Provider:  "openai",
		Healthy:   true,
		CheckedAt: time.Now().Truncate(time.Second),
	}

	key := BuildCacheKey(CacheKeyHealthVerdict, "openai")
	require.NoError(t, cache.Set(ctx, key, snapshot, TTLHealthVerdict))

	var got model.HealthSnapshot
	require.NoError(t, cache.Get(ctx, key, &got))
	assert.Equal(t, "openai", got.Provider)
	assert.True(t, got.Healthy)
}

func TestCache_GetMissing(t *testing.T) {
	cache := newTestCache(t)

	var got model.HealthSnapshot
	err := cache.Get(context.Background(), BuildCacheKey(CacheKeyHealthVerdict, "nope"), &got)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestCache_Delete(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	key := BuildCacheKey(CacheKeySelection, "receipt", "abc")
	require.NoError(t, cache.Set(ctx, key, map[string]string{"model": "gpt-4o"}, TTLSelection))
	require.NoError(t, cache.Delete(ctx, key))

	exists, err := cache.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBuildCacheKey(t *testing.T) {
	assert.Equal(t, "health:openai", BuildCacheKey(CacheKeyHealthVerdict, "openai"))
	assert.Equal(t, "selection:receipt:a1b2", BuildCacheKey(CacheKeySelection, "receipt", "a1b2"))
}

func TestCache_NilClient(t *testing.T) {
	cache := NewCacheClient(nil)
	ctx := context.Background()

	var dest map[string]string
	assert.Error(t, cache.Get(ctx, "k", &dest))
	assert.Error(t, cache.Set(ctx, "k", "v", time.Minute))
}
