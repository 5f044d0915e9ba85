package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relief-dao/internal/domain"
	"relief-dao/pkg/redis"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient("redis://"+mr.Addr(), "test", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func openSummary(now time.Time, lifetime time.Duration) domain.UnitSummary {
	return domain.UnitSummary{
		ID:        uuid.New(),
		Name:      "Flood relief",
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
		Phase:     domain.PhaseOpen,
		Status:    domain.StatusOpen,
		TotalPool: 42,
	}
}

func TestCacheService_Disabled(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(nil, nil)
	now := time.Now()

	assert.False(t, cache.Enabled())

	cache.SetUnitSummary(ctx, openSummary(now, time.Hour), now)
	_, ok := cache.GetUnitSummary(ctx, uuid.NewString())
	assert.False(t, ok)

	_, ok = cache.GetUnitList(ctx)
	assert.False(t, ok)
	cache.InvalidateUnit(ctx, uuid.NewString())

	acquired, err := cache.AcquireIdempotencyKey(ctx, "0xabc", "key")
	require.NoError(t, err)
	assert.True(t, acquired)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
}

func TestCacheService_UnitSummary(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	cache := NewCacheService(client, nil)
	now := time.Now()

	summary := openSummary(now, time.Hour)
	cache.SetUnitSummary(ctx, summary, now)

	got, ok := cache.GetUnitSummary(ctx, summary.ID.String())
	require.True(t, ok)
	assert.Equal(t, summary.ID, got.ID)
	assert.Equal(t, summary.TotalPool, got.TotalPool)
	assert.Equal(t, redis.TTLUnitSummary, mr.TTL(client.KeyBuilder.KeyUnitSummary(summary.ID.String())))

	mr.FastForward(redis.TTLUnitSummary)
	_, ok = cache.GetUnitSummary(ctx, summary.ID.String())
	assert.False(t, ok)
}

func TestCacheService_UnitSummaryTTLStopsAtExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	cache := NewCacheService(client, nil)
	now := time.Now()

	closing := openSummary(now, 2*time.Second)
	cache.SetUnitSummary(ctx, closing, now)
	assert.Equal(t, 2*time.Second, mr.TTL(client.KeyBuilder.KeyUnitSummary(closing.ID.String())))

	// already past expiry but still reported open: never cached
	stale := openSummary(now.Add(-time.Hour), time.Minute)
	cache.SetUnitSummary(ctx, stale, now)
	assert.False(t, mr.Exists(client.KeyBuilder.KeyUnitSummary(stale.ID.String())))

	expired := openSummary(now.Add(-time.Hour), time.Minute)
	expired.Phase = domain.PhaseExpired
	expired.Status = domain.StatusAwaitingConclusion
	cache.SetUnitSummary(ctx, expired, now)
	assert.Equal(t, redis.TTLUnitSummary, mr.TTL(client.KeyBuilder.KeyUnitSummary(expired.ID.String())))
}

func TestCacheService_UnitListAndInvalidate(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	cache := NewCacheService(client, nil)
	now := time.Now()

	a := openSummary(now, time.Hour)
	b := openSummary(now, 3*time.Second)
	cache.SetUnitList(ctx, []domain.UnitSummary{a, b}, now)
	cache.SetUnitSummary(ctx, a, now)

	list, ok := cache.GetUnitList(ctx)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, 3*time.Second, mr.TTL(client.KeyBuilder.KeyUnitList()))

	cache.InvalidateUnit(ctx, a.ID.String())

	_, ok = cache.GetUnitList(ctx)
	assert.False(t, ok)
	_, ok = cache.GetUnitSummary(ctx, a.ID.String())
	assert.False(t, ok)
}

func TestCacheService_CorruptedEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	cache := NewCacheService(client, nil)

	id := uuid.NewString()
	require.NoError(t, mr.Set(client.KeyBuilder.KeyUnitSummary(id), "{not json"))

	_, ok := cache.GetUnitSummary(ctx, id)
	assert.False(t, ok)
}

func TestCacheService_IdempotencyKey(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	cache := NewCacheService(client, nil)

	acquired, err := cache.AcquireIdempotencyKey(ctx, "0xABC", "req-1")
	require.NoError(t, err)
	assert.True(t, acquired)

	// identity casing does not matter
	acquired, err = cache.AcquireIdempotencyKey(ctx, "0xabc", "req-1")
	require.NoError(t, err)
	assert.False(t, acquired)

	acquired, err = cache.AcquireIdempotencyKey(ctx, "0xabc", "req-2")
	require.NoError(t, err)
	assert.True(t, acquired)

	mr.FastForward(redis.TTLIdempotency)
	acquired, err = cache.AcquireIdempotencyKey(ctx, "0xabc", "req-1")
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestCacheService_RedisDownFailsOpen(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	cache := NewCacheService(client, nil)
	now := time.Now()

	mr.Close()

	summary := openSummary(now, time.Hour)
	cache.SetUnitSummary(ctx, summary, now)
	_, ok := cache.GetUnitSummary(ctx, summary.ID.String())
	assert.False(t, ok)
	cache.InvalidateUnit(ctx, summary.ID.String())

	_, err := cache.AcquireIdempotencyKey(ctx, "0xabc", "req-1")
	assert.Error(t, err)
}
