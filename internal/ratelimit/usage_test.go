package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/hephaistos-io/pyro/internal/common/logger"
)

func newTestUsageTracker(t *testing.T) (*miniredis.Miniredis, *RedisUsageTracker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	u := NewRedisUsageTracker(client, testRateLimitConfig(), logger.NewNoOpLogger())
	return mr, u
}

func TestMonthlyUsage_CountsSequentialIncrements(t *testing.T) {
	_, u := newTestUsageTracker(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		count := u.IncrementMonthlyUsage(ctx, "env-1")
		assert.Equal(t, int64(i+1), count)
	}

	assert.Equal(t, int64(7), u.GetMonthlyUsage(ctx, "env-1"))
}

func TestMonthlyUsage_EnvironmentsAreIndependent(t *testing.T) {
	_, u := newTestUsageTracker(t)
	ctx := context.Background()

	u.IncrementMonthlyUsage(ctx, "env-1")
	u.IncrementMonthlyUsage(ctx, "env-1")
	u.IncrementMonthlyUsage(ctx, "env-2")

	assert.Equal(t, int64(2), u.GetMonthlyUsage(ctx, "env-1"))
	assert.Equal(t, int64(1), u.GetMonthlyUsage(ctx, "env-2"))
	assert.Equal(t, int64(0), u.GetMonthlyUsage(ctx, "env-3"))
}

func TestMonthlyUsage_KeyedByUTCMonth(t *testing.T) {
	mr, u := newTestUsageTracker(t)
	ctx := context.Background()

	u.now = func() time.Time {
		return time.Date(2026, time.January, 31, 23, 59, 0, 0, time.UTC)
	}
	u.IncrementMonthlyUsage(ctx, "env-1")
	assert.Equal(t, int64(1), u.GetMonthlyUsage(ctx, "env-1"))

	// The month rolls over; the counter starts fresh.
	u.now = func() time.Time {
		return time.Date(2026, time.February, 1, 0, 1, 0, 0, time.UTC)
	}
	assert.Equal(t, int64(0), u.GetMonthlyUsage(ctx, "env-1"))
	u.IncrementMonthlyUsage(ctx, "env-1")
	assert.Equal(t, int64(1), u.GetMonthlyUsage(ctx, "env-1"))

	assert.True(t, mr.Exists("usage:monthly:env-1:2026-01"))
	assert.True(t, mr.Exists("usage:monthly:env-1:2026-02"))
}

func TestMonthlyUsage_ExpirySetOnFirstIncrementOnly(t *testing.T) {
	mr, u := newTestUsageTracker(t)
	ctx := context.Background()

	u.now = func() time.Time {
		return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	}
	u.IncrementMonthlyUsage(ctx, "env-1")

	key := "usage:monthly:env-1:2026-03"
	ttl := mr.TTL(key)
	assert.Equal(t, 45*24*time.Hour, ttl)

	// Later increments must not reset the expiry window.
	mr.FastForward(24 * time.Hour)
	u.IncrementMonthlyUsage(ctx, "env-1")
	assert.Equal(t, 44*24*time.Hour, mr.TTL(key))
}

func TestMonthlyUsage_BackendFailureReadsZero(t *testing.T) {
	mr, u := newTestUsageTracker(t)
	ctx := context.Background()

	u.IncrementMonthlyUsage(ctx, "env-1")
	mr.Close()

	// Increment swallows and reports zero, read reports zero too.
	assert.Equal(t, int64(0), u.IncrementMonthlyUsage(ctx, "env-1"))
	assert.Equal(t, int64(0), u.GetMonthlyUsage(ctx, "env-1"))
}

func TestGetRemainingMonthlyQuota(t *testing.T) {
	_, u := newTestUsageTracker(t)
	ctx := context.Background()

	assert.Equal(t, int64(100), u.GetRemainingMonthlyQuota(ctx, "env-1", 100))

	for i := 0; i < 30; i++ {
		u.IncrementMonthlyUsage(ctx, "env-1")
	}
	assert.Equal(t, int64(70), u.GetRemainingMonthlyQuota(ctx, "env-1", 100))

	for i := 0; i < 80; i++ {
		u.IncrementMonthlyUsage(ctx, "env-1")
	}
	// Overage clamps at zero, never negative.
	assert.Equal(t, int64(0), u.GetRemainingMonthlyQuota(ctx, "env-1", 100))
}

func TestNoopUsageTracker(t *testing.T) {
	var u UsageTracker = NoopUsageTracker{}
	ctx := context.Background()

	assert.Equal(t, int64(0), u.IncrementMonthlyUsage(ctx, "env-1"))
	assert.Equal(t, int64(0), u.GetMonthlyUsage(ctx, "env-1"))
	assert.Equal(t, int64(100), u.GetRemainingMonthlyQuota(ctx, "env-1", 100))
}
