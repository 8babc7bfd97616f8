package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"coinbet/domain/entities"

	"github.com/redis/go-redis/v9"
)

// RedisOddsCache keeps the latest odds snapshot of each market in Redis
type RedisOddsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisOddsCache creates an odds cache whose entries expire after ttl
func NewRedisOddsCache(client *redis.Client, ttl time.Duration) *RedisOddsCache {
	return &RedisOddsCache{client: client, ttl: ttl}
}

func oddsKey(marketID int64) string {
	return "odds:market:" + strconv.FormatInt(marketID, 10)
}

func (c *RedisOddsCache) SetOdds(ctx context.Context, snapshot *entities.OddsSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal odds snapshot: %w", err)
	}
	if err := c.client.Set(ctx, oddsKey(snapshot.MarketID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache odds: %w", err)
	}
	return nil
}

// GetOdds returns nil when the market has no cached snapshot
func (c *RedisOddsCache) GetOdds(ctx context.Context, marketID int64) (*entities.OddsSnapshot, error) {
	data, err := c.client.Get(ctx, oddsKey(marketID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached odds: %w", err)
	}

	var snapshot entities.OddsSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached odds: %w", err)
	}
	return &snapshot, nil
}

func (c *RedisOddsCache) Invalidate(ctx context.Context, marketID int64) error {
	if err := c.client.Del(ctx, oddsKey(marketID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached odds: %w", err)
	}
	return nil
}
