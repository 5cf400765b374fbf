package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/legacyxi/shopcart/cart-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func TestGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	state := &domain.CartState{
		SessionID: "s-123",
		Items:     map[string]map[string]int{"shirt-1": {"L": 2}, "shirt-2": {"M": 3}},
		UpdatedAt: time.Now(),
	}
	data, _ := json.Marshal(state)
	require.NoError(t, mr.Set(cacheKey("s-123"), string(data)))

	result, err := cache.Get(context.Background(), "s-123")
	require.NoError(t, err)
	assert.Equal(t, "s-123", result.SessionID)
	assert.Equal(t, state.Items, result.Items)
}

func TestGet_FillsMissingSessionID(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(cacheKey("s-1"), `{"items":{"a":{"S":1}}}`))

	result, err := cache.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", result.SessionID)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(cacheKey("s-1"), `{"session_id":"s-1","ite`))

	_, err := cache.Get(context.Background(), "s-1")
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestGet_RedisDown(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	mr.Close()

	_, err := cache.Get(context.Background(), "s-1")
	require.ErrorContains(t, err, "redis get failed")
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	state := &domain.CartState{
		SessionID: "s-456",
		Items:     map[string]map[string]int{"shirt-1": {"XL": 5}},
	}

	require.NoError(t, cache.Set(context.Background(), state))

	stored, err := mr.Get(cacheKey("s-456"))
	require.NoError(t, err)

	var got domain.CartState
	require.NoError(t, json.Unmarshal([]byte(stored), &got))
	assert.Equal(t, state.Items, got.Items)
}

func TestSet_WithTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), &domain.CartState{SessionID: "s-789"}))

	ttl := mr.TTL(cacheKey("s-789"))
	assert.GreaterOrEqual(t, ttl, DefaultTTL, "TTL should be at least base TTL")
	assert.LessOrEqual(t, ttl, DefaultTTL+5*time.Minute, "TTL should be base + max jitter")
}

func TestDelete_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(cacheKey("s-999"), `{"session_id":"s-999"}`))
	assert.True(t, mr.Exists(cacheKey("s-999")))

	require.NoError(t, cache.Delete(context.Background(), "s-999"))
	assert.False(t, mr.Exists(cacheKey("s-999")))
}

func TestDelete_NonExistentKey(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	assert.NoError(t, cache.Delete(context.Background(), "nonexistent"))
}

func TestCacheKey_Format(t *testing.T) {
	assert.Equal(t, "cart:session:test123", cacheKey("test123"))
}
