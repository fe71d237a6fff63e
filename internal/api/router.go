package api

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hephaistos-io/pyro/internal/common/observability"
	"github.com/hephaistos-io/pyro/internal/ratelimit"
)

// RouterDeps bundles what the HTTP surface needs.
type RouterDeps struct {
	Logger      *zap.Logger
	Credentials CredentialStore
	Limiter     ratelimit.Limiter
	Usage       ratelimit.UsageTracker
	Handlers    *Handlers
	Obs         *observability.Observability
}

// NewRouter assembles the customer API: health and metrics stay open,
// everything under /v1 is authenticated and rate limited.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(ginzap.Ginzap(deps.Logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(deps.Logger, true))
	router.Use(RequestID())
	if deps.Obs != nil {
		router.Use(observe(deps.Obs))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(Authenticate(deps.Credentials))
	v1.Use(RateLimit(deps.Limiter, deps.Usage))
	{
		v1.GET("/templates/system", deps.Handlers.GetSystemTemplate)
	}

	return router
}

// observe records request count and latency per route and status.
func observe(obs *observability.Observability) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		obs.RecordRequest(c.Request.Context(), route, c.Writer.Status())
		obs.RecordRequestDuration(c.Request.Context(), route, time.Since(start))
	}
}
