package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hephaistos-io/pyro/internal/common/config"
	"github.com/hephaistos-io/pyro/internal/common/logger"
	"github.com/hephaistos-io/pyro/internal/common/metrics"
	"github.com/hephaistos-io/pyro/internal/events"
	"github.com/hephaistos-io/pyro/internal/template"
)

// TemplateCache holds previously resolved template responses. All
// implementations share the contract that Get never returns an error for
// backend trouble (it reports a miss) and Put never fails the caller.
type TemplateCache interface {
	// Get returns the cached response, or (nil, false) on miss.
	Get(ctx context.Context, appID, envID, templateType, identifier string) (*template.MergedValues, bool)

	// Put stores a response with the configured TTL. Best-effort.
	Put(ctx context.Context, appID, envID, templateType, identifier string, value *template.MergedValues)

	// Invalidate removes every entry the event covers and returns how many
	// keys were deleted. Best-effort; errors surface as a zero count.
	Invalidate(ctx context.Context, evt events.Event) int64
}

// New returns the Redis-backed cache, or the no-op variant when caching is
// disabled. Callers never need to know which one they hold.
func New(client *redis.Client, cfg config.CacheConfig, log logger.Logger) TemplateCache {
	if !cfg.Enabled {
		return NoopCache{}
	}
	return NewRedisTemplateCache(client, cfg, log)
}

// RedisTemplateCache is the distributed cache shared by every read-side
// instance.
type RedisTemplateCache struct {
	client       *redis.Client
	ttl          time.Duration
	scanPageSize int64
	logger       logger.Logger
}

func NewRedisTemplateCache(client *redis.Client, cfg config.CacheConfig, log logger.Logger) *RedisTemplateCache {
	return &RedisTemplateCache{
		client:       client,
		ttl:          time.Duration(cfg.TTLSeconds) * time.Second,
		scanPageSize: cfg.ScanPageSize,
		logger:       log,
	}
}

func (c *RedisTemplateCache) Get(ctx context.Context, appID, envID, templateType, identifier string) (*template.MergedValues, bool) {
	key := BuildKey(appID, envID, templateType, identifier)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues(templateType).Inc()
		return nil, false
	}
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		metrics.CacheMisses.WithLabelValues(templateType).Inc()
		c.logger.WithError(err).Warn("Cache read failed, treating as miss", map[string]interface{}{
			"key": key,
		})
		return nil, false
	}

	var value template.MergedValues
	if err := json.Unmarshal(raw, &value); err != nil {
		// A payload we cannot decode is as good as absent.
		metrics.CacheErrors.WithLabelValues("decode").Inc()
		metrics.CacheMisses.WithLabelValues(templateType).Inc()
		c.logger.WithError(err).Warn("Cache payload malformed, treating as miss", map[string]interface{}{
			"key": key,
		})
		return nil, false
	}

	metrics.CacheHits.WithLabelValues(templateType).Inc()
	return &value, true
}

func (c *RedisTemplateCache) Put(ctx context.Context, appID, envID, templateType, identifier string, value *template.MergedValues) {
	key := BuildKey(appID, envID, templateType, identifier)

	payload, err := json.Marshal(value)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("encode").Inc()
		c.logger.WithError(err).Warn("Failed to encode cache payload", map[string]interface{}{
			"key": key,
		})
		return
	}

	// The TTL is never omitted: pattern invalidation is best-effort, and
	// expiry is the backstop against invalidations that never arrive.
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		metrics.CacheErrors.WithLabelValues("put").Inc()
		c.logger.WithError(err).Warn("Cache write failed", map[string]interface{}{
			"key": key,
		})
	}
}

func (c *RedisTemplateCache) Invalidate(ctx context.Context, evt events.Event) int64 {
	pattern := PatternFor(evt)

	if !strings.ContainsAny(pattern, "*?[") {
		deleted, err := c.client.Del(ctx, pattern).Result()
		if err != nil {
			metrics.CacheErrors.WithLabelValues("invalidate").Inc()
			c.logger.WithError(err).Warn("Cache invalidation delete failed", map[string]interface{}{
				"key": pattern,
			})
			return 0
		}
		metrics.InvalidatedKeys.Add(float64(deleted))
		return deleted
	}

	var total int64
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, c.scanPageSize).Result()
		if err != nil {
			metrics.CacheErrors.WithLabelValues("invalidate").Inc()
			c.logger.WithError(err).Warn("Cache invalidation scan failed", map[string]interface{}{
				"pattern": pattern,
			})
			return total
		}

		if len(keys) > 0 {
			deleted, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				metrics.CacheErrors.WithLabelValues("invalidate").Inc()
				c.logger.WithError(err).Warn("Cache invalidation delete failed", map[string]interface{}{
					"pattern": pattern,
				})
				return total
			}
			total += deleted
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	metrics.InvalidatedKeys.Add(float64(total))
	return total
}

// NoopCache is the disabled-cache variant: every read misses and every
// write is dropped.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, string, string, string) (*template.MergedValues, bool) {
	return nil, false
}

func (NoopCache) Put(context.Context, string, string, string, string, *template.MergedValues) {}

func (NoopCache) Invalidate(context.Context, events.Event) int64 { return 0 }
