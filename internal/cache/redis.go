package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nurpe/pestops-contracts/internal/model"
)

const dropdownsKey = "pestops:dropdowns"

func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisDropdownCache keeps the gateway option sets as one JSON value.
type RedisDropdownCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDropdownCache(client *redis.Client, ttl time.Duration) *RedisDropdownCache {
	return &RedisDropdownCache{client: client, ttl: ttl}
}

func (c *RedisDropdownCache) GetDropdowns(ctx context.Context) (model.Dropdowns, bool, error) {
	raw, err := c.client.Get(ctx, dropdownsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Dropdowns{}, false, nil
	}
	if err != nil {
		return model.Dropdowns{}, false, err
	}
	var dropdowns model.Dropdowns
	if err := json.Unmarshal(raw, &dropdowns); err != nil {
		return model.Dropdowns{}, false, err
	}
	return dropdowns, true, nil
}

func (c *RedisDropdownCache) SetDropdowns(ctx context.Context, dropdowns model.Dropdowns) error {
	raw, err := json.Marshal(dropdowns)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, dropdownsKey, raw, c.ttl).Err()
}
