package redis

import (
	"context"
	"errors"
	"fmt"
	"time"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const keyPrefix = "tus:response:"

type cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a response cache shared through redis. Entries are msgpack encoded.
func NewCache(client *redis.Client, ttl time.Duration) port.ResponseCache {
	return &cache{client: client, ttl: ttl}
}

func (c *cache) Get(ctx context.Context, key string) (*domain.CachedResponse, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached response: %w", err)
	}

	var resp domain.CachedResponse
	if err := msgpack.Unmarshal(raw, &resp); err != nil {
		return nil, false, fmt.Errorf("decode cached response: %w", err)
	}
	return &resp, true, nil
}

func (c *cache) Put(ctx context.Context, key string, resp domain.CachedResponse) error {
	raw, err := msgpack.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode cached response: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write cached response: %w", err)
	}
	return nil
}

func (c *cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("evict cached response: %w", err)
	}
	return nil
}
