package kpi

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfigCache struct {
	client redis.UniversalClient
	key    string
}

func NewRedisConfigCache(client redis.UniversalClient, prefix string) *RedisConfigCache {
	if prefix == "" {
		prefix = "kpi"
	}
	return &RedisConfigCache{client: client, key: prefix + ":config:active"}
}

func (c *RedisConfigCache) Get(ctx context.Context) ([]byte, bool, error) {
	if c.client == nil {
		return nil, false, nil
	}
	val, err := c.client.Get(ctx, c.key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisConfigCache) Set(ctx context.Context, value []byte, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.key, value, ttl).Err()
}

func (c *RedisConfigCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key).Err()
}
