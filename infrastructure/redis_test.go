package infrastructure

import (
	"context"
	"fmt"
	"testing"
	"time"

	"coinbet/domain/entities"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container for the test. Skipped in -short mode.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := ConnectRedis(ctx, fmt.Sprintf("%s:%s", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStores(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("odds cache round trip", func(t *testing.T) {
		cache := NewRedisOddsCache(client, time.Minute)
		snapshot := &entities.OddsSnapshot{
			MarketID:   20,
			TotalStake: 400,
			Options: []entities.OptionOdds{
				{Name: "Lions", Odds: 1.27, Stake: 300},
				{Name: "Tigers", Odds: 3.8, Stake: 100},
			},
			UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}

		missing, err := cache.GetOdds(ctx, 20)
		require.NoError(t, err)
		assert.Nil(t, missing)

		require.NoError(t, cache.SetOdds(ctx, snapshot))
		got, err := cache.GetOdds(ctx, 20)
		require.NoError(t, err)
		assert.Equal(t, snapshot, got)

		ttl, err := client.TTL(ctx, oddsKey(20)).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		require.NoError(t, cache.Invalidate(ctx, 20))
		got, err = cache.GetOdds(ctx, 20)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("counter keeps its first ttl", func(t *testing.T) {
		store := NewRedisCounterStore(client)

		count, err := store.Get(ctx, "registrations:ip:203.0.113.7")
		require.NoError(t, err)
		assert.Zero(t, count)

		count, err = store.Increment(ctx, "registrations:ip:203.0.113.7", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		count, err = store.Increment(ctx, "registrations:ip:203.0.113.7", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		ttl, err := client.TTL(ctx, counterKeyPrefix+"registrations:ip:203.0.113.7").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 59*time.Minute)

		require.NoError(t, store.Set(ctx, "registrations:ip:203.0.113.7", 0, time.Hour))
		count, err = store.Get(ctx, "registrations:ip:203.0.113.7")
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
