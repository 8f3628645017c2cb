// Package cache provides an optional redis-backed read-through cache for the
// public site configuration. When no redis address is configured every
// operation is a no-op, so callers never need to branch on availability.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dora-gg/cardshop/internal/config"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ConfigTTL bounds how stale a cached config map may get.
const ConfigTTL = 30 * time.Second

// Cache wraps a redis client. A nil *Cache is valid and disabled.
type Cache struct {
	client *redis.Client
}

// New connects to redis when an address is configured. Connection failures are
// logged and disable the cache rather than failing startup.
func New(cfg config.RedisConfig) *Cache {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		log.Warnf("cache: redis unreachable at %s, caching disabled: %v", cfg.Addr, errPing)
		_ = client.Close()
		return nil
	}
	return &Cache{client: client}
}

// ConfigKey returns the cache key for a config scope.
func ConfigKey(gameID *uint64) string {
	if gameID == nil {
		return "siteconfig:global"
	}
	return fmt.Sprintf("siteconfig:game:%d", *gameID)
}

// GetConfig fetches a cached config map. The second return reports a hit.
func (c *Cache) GetConfig(ctx context.Context, key string) (map[string]any, bool) {
	if c == nil {
		return nil, false
	}
	raw, errGet := c.client.Get(ctx, key).Bytes()
	if errGet != nil {
		return nil, false
	}
	var decoded map[string]any
	if errDecode := json.Unmarshal(raw, &decoded); errDecode != nil {
		return nil, false
	}
	return decoded, true
}

// SetConfig stores a config map with the standard TTL, best effort.
func (c *Cache) SetConfig(ctx context.Context, key string, value map[string]any) {
	if c == nil {
		return
	}
	raw, errEncode := json.Marshal(value)
	if errEncode != nil {
		return
	}
	if errSet := c.client.Set(ctx, key, raw, ConfigTTL).Err(); errSet != nil {
		log.Debugf("cache: set %s failed: %v", key, errSet)
	}
}

// InvalidateConfig drops cached config maps after a write. Global writes feed
// every scoped map, so those flush all siteconfig keys.
func (c *Cache) InvalidateConfig(ctx context.Context, gameID *uint64) {
	if c == nil {
		return
	}
	if gameID != nil {
		_ = c.client.Del(ctx, ConfigKey(gameID), ConfigKey(nil)).Err()
		return
	}
	iter := c.client.Scan(ctx, 0, "siteconfig:*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		_ = c.client.Del(ctx, keys...).Err()
	}
}
