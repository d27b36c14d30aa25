package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/troikatech/collections-agent/internal/session"
)

// RedisCache holds participants under call identifiers as JSON
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// Get returns nil, nil when the key is absent
func (c *RedisCache) Get(ctx context.Context, key string) (*session.CallParticipant, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p session.CallParticipant
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("decode cached participant %s: %w", key, err)
	}
	return &p, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, p *session.CallParticipant, ttl time.Duration) error {
	val, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

// Claim marks key as seen. It reports false when another request got there
// first, which is how duplicate carrier webhooks are dropped.
func (c *RedisCache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, "idempotency:"+key, 1, ttl).Result()
}

// ConnectRedis parses url and pings the server
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
