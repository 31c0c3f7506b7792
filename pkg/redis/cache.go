package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides JSON caching under "<prefix>:<namespace>:<key>"
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client    *Client
	namespace string
}

// NewCache creates a new cache helper
func NewCache(client *Client, namespace string) *Cache {
	return &Cache{client: client, namespace: namespace}
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:%s:%s", c.client.Prefix(), c.namespace, key)
}

// Get retrieves a cached value; a miss returns (false, nil)
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}
	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	return c.client.Redis().Set(ctx, c.fullKey(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.fullKey(key)).Err()
}

// GetOrLoad fills dest from cache, or from load on a miss and then caches it.
// A failed cache write does not fail the call.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var v T
	found, err := c.Get(ctx, key, &v)
	if err == nil && found {
		return v, nil
	}

	v, err = load()
	if err != nil {
		return v, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}

// Predefined TTLs
const (
	TTLMembership = 24 * time.Hour     // 월말 구성종목 스냅샷
	TTLCalendar   = 7 * 24 * time.Hour // 거래일 캘린더
)

// MembershipKey caches one basket snapshot
func MembershipKey(basket string, date time.Time) string {
	return fmt.Sprintf("members:%s:%s", basket, date.Format("2006-01-02"))
}
