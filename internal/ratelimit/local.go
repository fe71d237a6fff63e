package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// LocalRegistry is an in-process token bucket limiter for single-instance
// deployments and tests. Buckets are created on first use per environment;
// Allow never fails.
type LocalRegistry struct {
	buckets sync.Map

	now func() time.Time
}

type localBucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{now: time.Now}
}

func (r *LocalRegistry) Allow(_ context.Context, envID string, requestsPerSecond float64) (Decision, error) {
	if requestsPerSecond <= 0 {
		return Decision{Allowed: false, RetryAfter: time.Second}, nil
	}

	now := r.now()
	entry, _ := r.buckets.LoadOrStore(envID, &localBucket{tokens: requestsPerSecond, last: now})
	b := entry.(*localBucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(requestsPerSecond, b.tokens+elapsed*requestsPerSecond)
		b.last = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return Decision{Allowed: true, Remaining: int64(math.Floor(b.tokens))}, nil
	}

	retryAfter := time.Duration((1 - b.tokens) / requestsPerSecond * float64(time.Second))
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}, nil
}
