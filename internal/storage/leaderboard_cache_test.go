package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helper-ledger/internal/models"
)

func setupLeaderboardCache(t *testing.T, ttl time.Duration) (*LeaderboardCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLeaderboardCache(NewRedisCacheFromClient(client), ttl), mr
}

func TestLeaderboardCache_SetGet(t *testing.T) {
	cache, _ := setupLeaderboardCache(t, time.Minute)
	ctx := testContext(t)

	entries := []*models.LeaderboardEntry{
		{UserID: "u1", Points: 120},
		{UserID: "u2", Points: 80},
	}

	key := cache.Key("windowed", 7, 100)
	require.NoError(t, cache.Set(ctx, key, entries))

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestLeaderboardCache_Miss(t *testing.T) {
	cache, _ := setupLeaderboardCache(t, time.Minute)
	ctx := testContext(t)

	got, err := cache.Get(ctx, cache.Key("balance", 0, 100))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLeaderboardCache_Expiry(t *testing.T) {
	cache, mr := setupLeaderboardCache(t, time.Second)
	ctx := testContext(t)

	key := cache.Key("thanks", 30, 50)
	require.NoError(t, cache.Set(ctx, key, []*models.LeaderboardEntry{{UserID: "u1", Points: 3}}))

	mr.FastForward(2 * time.Second)

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLeaderboardCache_CorruptEntryIsAMiss(t *testing.T) {
	cache, mr := setupLeaderboardCache(t, time.Minute)
	ctx := testContext(t)

	key := cache.Key("windowed", 7, 100)
	require.NoError(t, mr.Set(key, "not json"))

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLeaderboardCache_KeyVariants(t *testing.T) {
	cache, _ := setupLeaderboardCache(t, time.Minute)

	assert.NotEqual(t, cache.Key("windowed", 7, 100), cache.Key("windowed", 30, 100))
	assert.NotEqual(t, cache.Key("windowed", 7, 100), cache.Key("thanks", 7, 100))
	assert.NotEqual(t, cache.Key("windowed", 7, 100), cache.Key("windowed", 7, 50))
}
