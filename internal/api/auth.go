// Package api is the customer-facing HTTP surface: API-key authentication,
// per-environment rate limiting, and the SYSTEM template read endpoint.
package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/hephaistos-io/pyro/internal/common/errors"
)

const (
	apiKeyHeader = "X-API-Key"

	principalKey = "principal"
)

// Principal is the tenant context an API key resolves to. Requests are
// pinned to one application and environment; the limits travel with the
// credential so admission control needs no extra lookup.
type Principal struct {
	ApplicationID     string
	EnvironmentID     string
	RequestsPerSecond float64
	MonthlyQuota      int64
}

// CredentialStore validates API keys. A bad key is reported as (nil, nil);
// errors are reserved for backend trouble.
type CredentialStore interface {
	Lookup(ctx context.Context, apiKey string) (*Principal, error)
}

// Authenticate resolves the X-API-Key header to a Principal and aborts
// with 401 when it is missing or unknown.
func Authenticate(credentials CredentialStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(apiKeyHeader)
		if key == "" {
			abortWithError(c, errors.NewUnauthorizedError("missing X-API-Key header"))
			return
		}

		principal, err := credentials.Lookup(c.Request.Context(), key)
		if err != nil {
			abortWithError(c, errors.NewBackendUnavailableError("credentials", err))
			return
		}
		if principal == nil {
			abortWithError(c, errors.NewUnauthorizedError("unknown API key"))
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func principalFrom(c *gin.Context) *Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	return v.(*Principal)
}
