package promo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeCacheKey = "promo:active"

// Cache wraps Redis helpers for the active-promotion list.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetActive loads the cached active-promotion list. It reports whether the
// key existed.
func (c *Cache) GetActive(ctx context.Context, dst *[]Promotion) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	data, err := c.client.Get(ctx, activeCacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetActive stores the active-promotion list with the configured TTL.
func (c *Cache) SetActive(ctx context.Context, promotions []Promotion) error {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(promotions)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, activeCacheKey, data, c.ttl).Err()
}

// Invalidate drops the cached list, called after admin writes.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, activeCacheKey).Err()
}
