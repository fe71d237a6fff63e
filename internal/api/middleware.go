package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hephaistos-io/pyro/internal/common/errors"
	"github.com/hephaistos-io/pyro/internal/ratelimit"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id for log correlation, honoring
// one supplied by the caller.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set("request_id", id)
		c.Next()
	}
}

// RateLimit admits requests against the principal's environment bucket and
// counts admitted requests toward the monthly usage figure. Denials carry
// Retry-After so well-behaved SDKs back off; a fail-closed backend outage
// surfaces as service unavailable rather than a denial.
func RateLimit(limiter ratelimit.Limiter, usage ratelimit.UsageTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := principalFrom(c)
		if principal == nil {
			abortWithError(c, errors.NewUnauthorizedError("no principal in request context"))
			return
		}

		decision, err := limiter.Allow(c.Request.Context(), principal.EnvironmentID, principal.RequestsPerSecond)
		if err != nil {
			// Only a fail-closed backend failure reaches here; fail open
			// admits without error. This is an outage, not exhaustion.
			abortWithError(c, errors.NewBackendUnavailableError("rate-limit", err))
			return
		}
		if !decision.Allowed {
			retryAfter := decision.RetryAfter
			seconds := int64(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			abortWithError(c, errors.NewRateLimitExceededError(retryAfter))
			return
		}

		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
		usage.IncrementMonthlyUsage(c.Request.Context(), principal.EnvironmentID)
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	std := errors.Normalize(err)
	c.AbortWithStatusJSON(errors.HTTPStatus(std.Code), gin.H{"error": std})
}
