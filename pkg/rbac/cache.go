package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/orgdeck/orgdeck/pkg/observability"
)

// Cache is a two-layer cache for resolved permission bundles. L1 is an
// in-process expirable LRU; L2 is an optional shared Redis. Entries carry a
// TTL so that updates made by other nodes converge without coordination;
// local updates invalidate eagerly through Invalidate.
type Cache struct {
	local   *lru.LRU[string, *PermissionSet]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCache creates a permission cache. redisClient may be nil, which
// disables the L2 layer. metrics may be nil.
func NewCache(size int, ttl time.Duration, redisClient *redis.Client, metrics *observability.Metrics) *Cache {
	if size <= 0 {
		size = 1024
	}
	return &Cache{
		local:   lru.NewLRU[string, *PermissionSet](size, nil, ttl),
		redis:   redisClient,
		ttl:     ttl,
		metrics: metrics,
	}
}

func cacheKey(orgID int64, role Role) string {
	return fmt.Sprintf("perm:%d:%s", orgID, role)
}

// Get returns the cached bundle for an (organization, role) pair, or nil on
// a miss. A hit in Redis backfills the local layer.
func (c *Cache) Get(ctx context.Context, orgID int64, role Role) *PermissionSet {
	key := cacheKey(orgID, role)

	if set, ok := c.local.Get(key); ok {
		c.hit("local")
		return set
	}
	c.miss("local")

	if c.redis == nil {
		return nil
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		c.miss("redis")
		return nil
	}

	var set PermissionSet
	if err := json.Unmarshal(data, &set); err != nil {
		c.miss("redis")
		return nil
	}

	c.hit("redis")
	c.local.Add(key, &set)
	return &set
}

// Put stores a resolved bundle in both layers. Redis failures are swallowed:
// the cache is an optimization and the store remains authoritative.
func (c *Cache) Put(ctx context.Context, orgID int64, role Role, set *PermissionSet) {
	key := cacheKey(orgID, role)
	c.local.Add(key, set)

	if c.redis == nil {
		return
	}
	if data, err := json.Marshal(set); err == nil {
		c.redis.Set(ctx, key, data, c.ttl)
	}
}

// Invalidate drops the cached bundle for an (organization, role) pair after
// a permission update
func (c *Cache) Invalidate(ctx context.Context, orgID int64, role Role) {
	key := cacheKey(orgID, role)
	c.local.Remove(key)
	if c.redis != nil {
		c.redis.Del(ctx, key)
	}
}

// InvalidateOrg drops every cached bundle of an organization
func (c *Cache) InvalidateOrg(ctx context.Context, orgID int64) {
	for _, role := range CustomizableRoles {
		c.Invalidate(ctx, orgID, role)
	}
}

func (c *Cache) hit(layer string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(layer).Inc()
	}
}

func (c *Cache) miss(layer string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(layer).Inc()
	}
}
