package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"relief-dao/internal/domain"
	"relief-dao/pkg/redis"
)

// CacheService caches unit read models in Redis. A nil Redis client turns every
// call into a miss or a no-op; cache failures never fail the caller.
type CacheService struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewCacheService creates a new cache service
func NewCacheService(redisClient *redis.Client, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{
		redis:  redisClient,
		logger: logger,
	}
}

// Enabled reports whether a Redis backend is configured
func (c *CacheService) Enabled() bool {
	return c != nil && c.redis != nil
}

// GetUnitSummary returns a cached summary, or false on miss
func (c *CacheService) GetUnitSummary(ctx context.Context, unitID string) (*domain.UnitSummary, bool) {
	if !c.Enabled() {
		return nil, false
	}
	var summary domain.UnitSummary
	if !c.getJSON(ctx, c.redis.KeyBuilder.KeyUnitSummary(unitID), &summary) {
		return nil, false
	}
	return &summary, true
}

// SetUnitSummary caches a summary. The TTL never outlives the unit's expiry so a
// cached open unit cannot be served after it has closed.
func (c *CacheService) SetUnitSummary(ctx context.Context, summary domain.UnitSummary, now time.Time) {
	if !c.Enabled() {
		return
	}
	ttl := redis.TTLUnitSummary
	if summary.Phase == domain.PhaseOpen {
		if untilExpiry := summary.ExpiresAt.Sub(now); untilExpiry < ttl {
			ttl = untilExpiry
		}
	}
	if ttl <= 0 {
		return
	}
	c.setJSON(ctx, c.redis.KeyBuilder.KeyUnitSummary(summary.ID.String()), summary, ttl)
}

// GetUnitList returns the cached unit listing, or false on miss
func (c *CacheService) GetUnitList(ctx context.Context) ([]domain.UnitSummary, bool) {
	if !c.Enabled() {
		return nil, false
	}
	var list []domain.UnitSummary
	if !c.getJSON(ctx, c.redis.KeyBuilder.KeyUnitList(), &list) {
		return nil, false
	}
	return list, true
}

// SetUnitList caches the unit listing
func (c *CacheService) SetUnitList(ctx context.Context, list []domain.UnitSummary, now time.Time) {
	if !c.Enabled() {
		return
	}
	ttl := redis.TTLUnitList
	for _, s := range list {
		if s.Phase != domain.PhaseOpen {
			continue
		}
		if untilExpiry := s.ExpiresAt.Sub(now); untilExpiry < ttl {
			ttl = untilExpiry
		}
	}
	if ttl <= 0 {
		return
	}
	c.setJSON(ctx, c.redis.KeyBuilder.KeyUnitList(), list, ttl)
}

// InvalidateUnit drops every cached view of a unit after a mutation
func (c *CacheService) InvalidateUnit(ctx context.Context, unitID string) {
	if !c.Enabled() {
		return
	}
	keys := []string{
		c.redis.KeyBuilder.KeyUnitSummary(unitID),
		c.redis.KeyBuilder.KeyUnitList(),
	}
	if err := c.redis.Delete(ctx, keys...); err != nil {
		c.logger.Warn("Failed to invalidate unit cache",
			zap.String("unit_id", unitID),
			zap.Error(err))
	}
}

// InvalidateUnitList drops the cached listing only
func (c *CacheService) InvalidateUnitList(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	if err := c.redis.Delete(ctx, c.redis.KeyBuilder.KeyUnitList()); err != nil {
		c.logger.Warn("Failed to invalidate unit list cache", zap.Error(err))
	}
}

// AcquireIdempotencyKey claims key for identity. It returns false when the key
// was already used. Without Redis every key is accepted.
func (c *CacheService) AcquireIdempotencyKey(ctx context.Context, identity, key string) (bool, error) {
	if !c.Enabled() {
		return true, nil
	}
	ok, err := c.redis.SetNX(ctx, c.redis.KeyBuilder.KeyIdempotency(identity, key), time.Now().UTC().Unix(), redis.TTLIdempotency)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReleaseIdempotencyKey forgets a claimed key so it can be used again
func (c *CacheService) ReleaseIdempotencyKey(ctx context.Context, identity, key string) error {
	if !c.Enabled() {
		return nil
	}
	return c.redis.Delete(ctx, c.redis.KeyBuilder.KeyIdempotency(identity, key))
}

func (c *CacheService) getJSON(ctx context.Context, key string, dst interface{}) bool {
	cached, err := c.redis.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Cache read failed", zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(cached), dst); err != nil {
		c.logger.Warn("Cache entry corrupted, ignoring", zap.Error(err))
		return false
	}
	return true
}

func (c *CacheService) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to encode cache entry", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("Cache write failed", zap.Error(err))
	}
}
