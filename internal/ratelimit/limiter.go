// Package ratelimit provides per-environment admission control and monthly
// usage accounting, both externalized in Redis so every read-side instance
// shares one view of a tenant's budget.
package ratelimit

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hephaistos-io/pyro/internal/common/config"
	"github.com/hephaistos-io/pyro/internal/common/logger"
	"github.com/hephaistos-io/pyro/internal/common/metrics"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Remaining int64
	// RetryAfter is how long until one token refills; zero when allowed.
	RetryAfter time.Duration
}

// Limiter admits or rejects a request against an environment's token
// bucket.
type Limiter interface {
	Allow(ctx context.Context, envID string, requestsPerSecond float64) (Decision, error)
}

// Refill and consume happen in one script so concurrent instances cannot
// both spend the last token. Tokens travel as strings to keep float
// precision across the Lua/Redis boundary.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])

if tokens == nil then
  tokens = capacity
  ts = now
end

local elapsed = math.max(0, now - ts)
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', tostring(now))
redis.call('PEXPIRE', key, math.ceil(capacity / rate * 2000))

return {allowed, tostring(tokens)}
`)

// RedisLimiter is a token bucket whose state lives in Redis, keyed per
// environment. Backend failures follow the configured failure mode: fail
// open admits the request, fail closed rejects it.
type RedisLimiter struct {
	client   *redis.Client
	failOpen bool
	logger   logger.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewRedisLimiter(client *redis.Client, cfg config.RateLimitConfig, log logger.Logger) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		failOpen: cfg.FailOpen(),
		logger:   log,
		now:      time.Now,
	}
}

func bucketKey(envID string) string {
	return "rate-limit:env:" + envID
}

// Allow refills the environment's bucket for the time elapsed since the
// last call and consumes one token if available. Burst capacity equals the
// per-second rate.
func (l *RedisLimiter) Allow(ctx context.Context, envID string, requestsPerSecond float64) (Decision, error) {
	if requestsPerSecond <= 0 {
		metrics.RateLimitDecisions.WithLabelValues("denied").Inc()
		return Decision{Allowed: false, RetryAfter: time.Second}, nil
	}

	nowSec := float64(l.now().UnixNano()) / float64(time.Second)

	res, err := tokenBucketScript.Run(ctx, l.client,
		[]string{bucketKey(envID)},
		strconv.FormatFloat(requestsPerSecond, 'f', -1, 64),
		strconv.FormatFloat(requestsPerSecond, 'f', -1, 64),
		strconv.FormatFloat(nowSec, 'f', -1, 64),
	).Slice()
	if err != nil {
		l.logger.WithError(err).Warn("Rate limit backend unavailable", map[string]interface{}{
			"environment_id": envID,
			"fail_open":      l.failOpen,
		})
		if l.failOpen {
			metrics.RateLimitDecisions.WithLabelValues("fail_open").Inc()
			return Decision{Allowed: true}, nil
		}
		metrics.RateLimitDecisions.WithLabelValues("fail_closed").Inc()
		return Decision{Allowed: false, RetryAfter: time.Second}, err
	}

	allowed := res[0].(int64) == 1
	tokens, _ := strconv.ParseFloat(res[1].(string), 64)

	decision := Decision{
		Allowed:   allowed,
		Remaining: int64(math.Floor(tokens)),
	}
	if allowed {
		metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
		return decision, nil
	}

	// Time until the bucket refills one whole token.
	deficit := 1 - tokens
	decision.RetryAfter = time.Duration(deficit / requestsPerSecond * float64(time.Second))
	if decision.RetryAfter <= 0 {
		decision.RetryAfter = time.Millisecond
	}
	metrics.RateLimitDecisions.WithLabelValues("denied").Inc()
	return decision, nil
}

// NoopLimiter is the disabled-limiter variant: everything is admitted.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string, float64) (Decision, error) {
	return Decision{Allowed: true}, nil
}

// NewLimiter returns the Redis-backed limiter, or the no-op variant when
// rate limiting is disabled.
func NewLimiter(client *redis.Client, cfg config.RateLimitConfig, log logger.Logger) Limiter {
	if !cfg.Enabled {
		return NoopLimiter{}
	}
	return NewRedisLimiter(client, cfg, log)
}
