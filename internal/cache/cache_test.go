package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/law-makers/landed/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(url string) models.ProductRecord {
	price := decimal.RequireFromString("999.00")
	return models.NewProductRecord(url, "shop", "Blue Sofa", &price, "USD", "https://x/img.jpg", "", models.StrategyDirect)
}

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(1 << 20)
	defer mc.Close()

	key := KeyFromURL("https://shop.example.com/p/1")
	rec := sampleRecord("https://shop.example.com/p/1")
	require.NoError(t, mc.Set(ctx, key, rec, time.Minute))

	got, ok := mc.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	_, ok = mc.Get(ctx, KeyFromURL("https://shop.example.com/other"))
	assert.False(t, ok)

	stats := mc.Stats()
	assert.Equal(t, uint64(1), stats["hits"])
	assert.Equal(t, uint64(1), stats["misses"])
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(1 << 20)
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", sampleRecord("u"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok := mc.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	one := recordSize("a", sampleRecord("a"))
	mc := NewMemoryCache(one*2 + one/2)
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", sampleRecord("a"), time.Minute))
	require.NoError(t, mc.Set(ctx, "b", sampleRecord("b"), time.Minute))

	// Touch a so b becomes the eviction candidate
	_, ok := mc.Get(ctx, "a")
	require.True(t, ok)

	require.NoError(t, mc.Set(ctx, "c", sampleRecord("c"), time.Minute))

	_, okA := mc.Get(ctx, "a")
	_, okB := mc.Get(ctx, "b")
	_, okC := mc.Get(ctx, "c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestMemoryCache_ReplaceKeepsSizeAccurate(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(1 << 20)
	defer mc.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, mc.Set(ctx, "same", sampleRecord("u"), time.Minute))
	}
	assert.Equal(t, 1, mc.Len())
	assert.Equal(t, recordSize("same", sampleRecord("u")), mc.Stats()["size_bytes"])

	require.NoError(t, mc.Delete(ctx, "same"))
	require.NoError(t, mc.Delete(ctx, "missing"))
	assert.Equal(t, int64(0), mc.Stats()["size_bytes"])
}

func TestMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(0)
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", sampleRecord("a"), 0))
	require.NoError(t, mc.Clear(ctx))
	assert.Equal(t, 0, mc.Len())
}

func TestRedisCache_RoundTrip(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rc, err := NewRedisCache(ctx, RedisOptions{Addr: addr})
	require.NoError(t, err)
	defer rc.Close()

	key := KeyFromURL("https://shop.example.com/redis-test")
	rec := sampleRecord("https://shop.example.com/redis-test")

	require.NoError(t, rc.Set(ctx, key, rec, time.Minute))
	got, ok := rc.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, rec.Title, got.Title)
	assert.True(t, rec.Price.Equal(*got.Price))
	assert.Equal(t, rec.Confidence, got.Confidence)

	require.NoError(t, rc.Clear(ctx))
	_, ok = rc.Get(ctx, key)
	assert.False(t, ok)
}

func TestRedisCache_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, RedisOptions{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedisCache_MissOnClosedClient(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	rc := NewRedisCacheFromClient(client)
	require.NoError(t, rc.Close())

	_, ok := rc.Get(context.Background(), "k")
	assert.False(t, ok)
}
