package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klbk90/creative-optimizer-sub001/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	authCachePrefix = "auth:ctx:"
	authCacheTTL    = 5 * time.Minute
)

// GetAuthContext retrieves a cached auth context by cache key.
// A miss, an unreadable entry or a Redis failure all return (nil, nil);
// the caller falls back to the database.
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, authCachePrefix+cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get auth context: %w", err)
	}

	var auth model.AuthContext
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, nil //nolint:nilerr
	}
	return &auth, nil
}

// SetAuthContext caches an auth context.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error {
	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}
	return c.client.Set(ctx, authCachePrefix+cacheKey, data, authCacheTTL).Err()
}

// DeleteAuthContext removes a cached auth context. Used when a key is revoked.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	return c.client.Del(ctx, authCachePrefix+cacheKey).Err()
}
