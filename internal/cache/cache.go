// Package cache provides a tenant-scoped read-through cache on Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when the key is absent.
var ErrMiss = errors.New("cache: miss")

// TenantCache stores JSON documents under org-scoped keys so one tenant's
// entries can never collide with another's. A nil client disables caching;
// every lookup is a miss and every write a no-op.
type TenantCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a tenant cache with a default entry TTL.
func New(client *redis.Client, ttl time.Duration) *TenantCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TenantCache{client: client, ttl: ttl}
}

func (c *TenantCache) key(orgID, key string) string {
	return fmt.Sprintf("tenant:org:%s:%s", orgID, key)
}

// Get unmarshals the cached document into dest.
func (c *TenantCache) Get(ctx context.Context, orgID, key string, dest any) error {
	if c == nil || c.client == nil {
		return ErrMiss
	}
	data, err := c.client.Get(ctx, c.key(orgID, key)).Bytes()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return nil
}

// Put stores a document under the org-scoped key.
func (c *TenantCache) Put(ctx context.Context, orgID, key string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(orgID, key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: put %s: %w", key, err)
	}
	return nil
}

// Forget drops the cached document.
func (c *TenantCache) Forget(ctx context.Context, orgID, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.key(orgID, key)).Err(); err != nil {
		return fmt.Errorf("cache: forget %s: %w", key, err)
	}
	return nil
}
