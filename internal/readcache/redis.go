package readcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/versions"
)

// RedisCache is a Cache backed by Redis, for multi-instance deployments
// where every replica must see an invalidation immediately.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache creates a RedisCache. Cache errors are logged and treated
// as misses; Redis being down must never fail a read path.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func currentKey(documentMasterID uuid.UUID) string {
	return "psync:current:" + documentMasterID.String()
}

// GetCurrent implements Cache.
func (c *RedisCache) GetCurrent(ctx context.Context, documentMasterID uuid.UUID) (*versions.ProtocolVersion, bool) {
	raw, err := c.client.Get(ctx, currentKey(documentMasterID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("readcache: get", zap.Error(err))
		}
		return nil, false
	}
	var v versions.ProtocolVersion
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("readcache: decode cached version", zap.Error(err))
		return nil, false
	}
	return &v, true
}

// SetCurrent implements Cache.
func (c *RedisCache) SetCurrent(ctx context.Context, v *versions.ProtocolVersion) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("readcache: encode version", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, currentKey(v.DocumentMasterID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("readcache: set", zap.Error(err))
	}
}

// InvalidateCurrent implements Cache.
func (c *RedisCache) InvalidateCurrent(ctx context.Context, documentMasterID uuid.UUID) {
	if err := c.client.Del(ctx, currentKey(documentMasterID)).Err(); err != nil {
		c.logger.Warn("readcache: invalidate", zap.Error(err))
	}
}
