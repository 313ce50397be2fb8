package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helper-ledger/internal/models"
)

// LeaderboardCache caches computed leaderboards in Redis with a short TTL.
// Leaderboards tolerate staleness of a minute, so entries simply expire;
// there is no invalidation on accrual.
type LeaderboardCache struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewLeaderboardCache creates a leaderboard cache with the given TTL.
func NewLeaderboardCache(cache *RedisCache, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{cache: cache, ttl: ttl}
}

// Key builds the cache key for a leaderboard variant.
func (c *LeaderboardCache) Key(kind string, windowDays, limit int) string {
	return fmt.Sprintf("leaderboard:%s:%d:%d", kind, windowDays, limit)
}

// Get returns the cached leaderboard, or (nil, nil) on a miss.
func (c *LeaderboardCache) Get(ctx context.Context, key string) ([]*models.LeaderboardEntry, error) {
	data, err := c.cache.Client().Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read leaderboard cache: %w", err)
	}

	var entries []*models.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt entry is treated as a miss; it will be overwritten.
		return nil, nil
	}
	return entries, nil
}

// Set stores a leaderboard under the key with the configured TTL.
func (c *LeaderboardCache) Set(ctx context.Context, key string, entries []*models.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}
	if err := c.cache.Client().Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write leaderboard cache: %w", err)
	}
	return nil
}
