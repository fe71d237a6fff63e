package resolve

import (
	"context"
	"time"

	"github.com/hephaistos-io/pyro/internal/cache"
	"github.com/hephaistos-io/pyro/internal/common/metrics"
	"github.com/hephaistos-io/pyro/internal/store"
	"github.com/hephaistos-io/pyro/internal/template"
)

// CachedResolver puts the distributed cache in front of the resolution
// service. Cache trouble is invisible to callers: a failed read recomputes,
// a failed write is dropped.
type CachedResolver struct {
	service *Service
	cache   cache.TemplateCache
}

func NewCachedResolver(service *Service, templateCache cache.TemplateCache) *CachedResolver {
	return &CachedResolver{
		service: service,
		cache:   templateCache,
	}
}

// ResolveSystem answers from the cache when possible and falls through to
// full resolution on a miss, populating the cache on the way out.
func (r *CachedResolver) ResolveSystem(ctx context.Context, applicationID, environmentID, identifier string) (*template.MergedValues, error) {
	systemType := string(store.TypeSystem)

	if cached, ok := r.cache.Get(ctx, applicationID, environmentID, systemType, identifier); ok {
		return cached, nil
	}

	start := time.Now()
	resolved, err := r.service.ResolveSystem(ctx, applicationID, environmentID, identifier)
	if err != nil {
		return nil, err
	}
	metrics.ResolutionDuration.WithLabelValues(systemType).Observe(time.Since(start).Seconds())

	r.cache.Put(ctx, applicationID, environmentID, systemType, identifier, resolved)
	return resolved, nil
}
