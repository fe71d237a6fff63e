package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hephaistos-io/pyro/internal/common/config"
	"github.com/hephaistos-io/pyro/internal/common/logger"
)

func testRateLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:                  true,
		FailureMode:              "open",
		DefaultRequestsPerSecond: 50,
		UsageExpiryDays:          45,
	}
}

func newTestLimiter(t *testing.T) (*miniredis.Miniredis, *RedisLimiter) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := NewRedisLimiter(client, testRateLimitConfig(), logger.NewNoOpLogger())
	return mr, l
}

func TestAllow_DrainsBucketThenDenies(t *testing.T) {
	_, l := newTestLimiter(t)

	// Freeze time so no tokens refill between calls.
	frozen := time.Now()
	l.now = func() time.Time { return frozen }

	ctx := context.Background()
	const rate = 5.0

	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, "env-1", rate)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "call %d should be admitted", i)
		assert.Equal(t, int64(4-i), d.Remaining, "remaining must decrease strictly")
	}

	d, err := l.Allow(ctx, "env-1", rate)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestAllow_RefillsOverTime(t *testing.T) {
	_, l := newTestLimiter(t)

	current := time.Now()
	l.now = func() time.Time { return current }

	ctx := context.Background()
	const rate = 2.0

	// Drain.
	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "env-1", rate)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "env-1", rate)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// Half a second at 2 rps refills one token.
	current = current.Add(500 * time.Millisecond)
	d, err = l.Allow(ctx, "env-1", rate)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAllow_EnvironmentsAreIndependent(t *testing.T) {
	_, l := newTestLimiter(t)

	frozen := time.Now()
	l.now = func() time.Time { return frozen }

	ctx := context.Background()

	d, err := l.Allow(ctx, "env-1", 1)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	d, err = l.Allow(ctx, "env-1", 1)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// env-2 still has its full bucket.
	d, err = l.Allow(ctx, "env-2", 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAllow_FailOpenAdmitsOnBackendError(t *testing.T) {
	mr, l := newTestLimiter(t)
	mr.Close()

	d, err := l.Allow(context.Background(), "env-1", 5)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAllow_FailClosedRejectsOnBackendError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := testRateLimitConfig()
	cfg.FailureMode = "closed"
	l := NewRedisLimiter(client, cfg, logger.NewNoOpLogger())

	mr.Close()

	d, err := l.Allow(context.Background(), "env-1", 5)
	require.Error(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestAllow_NonPositiveRateDenies(t *testing.T) {
	_, l := newTestLimiter(t)

	d, err := l.Allow(context.Background(), "env-1", 0)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestNoopLimiter_AlwaysAdmits(t *testing.T) {
	var l Limiter = NoopLimiter{}
	for i := 0; i < 100; i++ {
		d, err := l.Allow(context.Background(), "env-1", 0.001)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
}

func TestNewLimiterHonorsDisabledConfig(t *testing.T) {
	cfg := testRateLimitConfig()
	cfg.Enabled = false

	l := NewLimiter(nil, cfg, logger.NewNoOpLogger())
	_, isNoop := l.(NoopLimiter)
	assert.True(t, isNoop)
}
