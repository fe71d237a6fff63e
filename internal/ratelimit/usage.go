package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hephaistos-io/pyro/internal/common/config"
	"github.com/hephaistos-io/pyro/internal/common/logger"
)

// UsageTracker counts requests per environment and calendar month.
type UsageTracker interface {
	// IncrementMonthlyUsage adds one request to the current month's
	// counter and returns the new count. Best-effort; failures are
	// swallowed and report zero.
	IncrementMonthlyUsage(ctx context.Context, envID string) int64

	// GetMonthlyUsage returns the current month's count. Backend failures
	// report zero.
	GetMonthlyUsage(ctx context.Context, envID string) int64

	// GetRemainingMonthlyQuota returns how much of the limit is left,
	// never negative.
	GetRemainingMonthlyQuota(ctx context.Context, envID string, limit int64) int64
}

// RedisUsageTracker keeps one INCR counter per environment and UTC month.
// Counters expire well past the month boundary so late billing reads still
// see the final figure.
type RedisUsageTracker struct {
	client *redis.Client
	expiry time.Duration
	logger logger.Logger

	now func() time.Time
}

func NewRedisUsageTracker(client *redis.Client, cfg config.RateLimitConfig, log logger.Logger) *RedisUsageTracker {
	return &RedisUsageTracker{
		client: client,
		expiry: time.Duration(cfg.UsageExpiryDays) * 24 * time.Hour,
		logger: log,
		now:    time.Now,
	}
}

func usageKey(envID string, now time.Time) string {
	return "usage:monthly:" + envID + ":" + now.UTC().Format("2006-01")
}

func (u *RedisUsageTracker) IncrementMonthlyUsage(ctx context.Context, envID string) int64 {
	key := usageKey(envID, u.now())

	count, err := u.client.Incr(ctx, key).Result()
	if err != nil {
		u.logger.WithError(err).Warn("Failed to increment monthly usage", map[string]interface{}{
			"environment_id": envID,
		})
		return 0
	}

	// First increment of the month creates the key; give it its expiry.
	if count == 1 {
		if err := u.client.Expire(ctx, key, u.expiry).Err(); err != nil {
			u.logger.WithError(err).Warn("Failed to set usage counter expiry", map[string]interface{}{
				"environment_id": envID,
			})
		}
	}
	return count
}

func (u *RedisUsageTracker) GetMonthlyUsage(ctx context.Context, envID string) int64 {
	count, err := u.client.Get(ctx, usageKey(envID, u.now())).Int64()
	if err == redis.Nil {
		return 0
	}
	if err != nil {
		u.logger.WithError(err).Warn("Failed to read monthly usage", map[string]interface{}{
			"environment_id": envID,
		})
		return 0
	}
	return count
}

func (u *RedisUsageTracker) GetRemainingMonthlyQuota(ctx context.Context, envID string, limit int64) int64 {
	used := u.GetMonthlyUsage(ctx, envID)
	if used >= limit {
		return 0
	}
	return limit - used
}

// NoopUsageTracker is the disabled variant: nothing is counted, usage
// always reads zero.
type NoopUsageTracker struct{}

func (NoopUsageTracker) IncrementMonthlyUsage(context.Context, string) int64 { return 0 }

func (NoopUsageTracker) GetMonthlyUsage(context.Context, string) int64 { return 0 }

func (NoopUsageTracker) GetRemainingMonthlyQuota(_ context.Context, _ string, limit int64) int64 {
	return limit
}

// NewUsageTracker returns the Redis-backed tracker, or the no-op variant
// when rate limiting is disabled.
func NewUsageTracker(client *redis.Client, cfg config.RateLimitConfig, log logger.Logger) UsageTracker {
	if !cfg.Enabled {
		return NoopUsageTracker{}
	}
	return NewRedisUsageTracker(client, cfg, log)
}
