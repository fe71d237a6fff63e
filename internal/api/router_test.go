package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hephaistos-io/pyro/internal/cache"
	"github.com/hephaistos-io/pyro/internal/common/config"
	"github.com/hephaistos-io/pyro/internal/common/logger"
	"github.com/hephaistos-io/pyro/internal/common/observability"
	"github.com/hephaistos-io/pyro/internal/ratelimit"
	"github.com/hephaistos-io/pyro/internal/resolve"
	"github.com/hephaistos-io/pyro/internal/store"
	"github.com/hephaistos-io/pyro/internal/template"
)

// fakeCredentials maps API keys to principals in memory.
type fakeCredentials map[string]*Principal

func (f fakeCredentials) Lookup(_ context.Context, apiKey string) (*Principal, error) {
	return f[apiKey], nil
}

// fakeStore mirrors the store contract for handler tests.
type fakeStore struct {
	schemas   map[string]*template.Schema
	overrides map[string]map[string]any
}

func (f *fakeStore) FindSchema(_ context.Context, appID string, tt store.TemplateType) (*template.Schema, error) {
	return f.schemas[appID+"/"+string(tt)], nil
}

func (f *fakeStore) FindOverride(_ context.Context, appID, envID string, tt store.TemplateType, identifier string) (*store.Override, error) {
	values, ok := f.overrides[appID+"/"+envID+"/"+string(tt)+"/"+identifier]
	if !ok {
		return nil, nil
	}
	return &store.Override{Identifier: identifier, Values: values}, nil
}

func (f *fakeStore) FindOverrides(ctx context.Context, appID, envID string, tt store.TemplateType, identifiers []string) ([]store.Override, error) {
	var out []store.Override
	for _, id := range identifiers {
		ov, _ := f.FindOverride(ctx, appID, envID, tt, id)
		if ov != nil {
			out = append(out, *ov)
		}
	}
	return out, nil
}

type testAPI struct {
	router *gin.Engine
	store  *fakeStore
}

func newTestAPI(t *testing.T, rps float64) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	def := "https://default.api.com"
	url, err := template.NewStringField("api_url", "", true, &def, 1, 255)
	require.NoError(t, err)
	schema, err := template.NewSchema(url)
	require.NoError(t, err)

	fs := &fakeStore{
		schemas: map[string]*template.Schema{"app-1/SYSTEM": schema},
		overrides: map[string]map[string]any{
			"app-1/env-1/SYSTEM/region-eu": {"api_url": "https://eu.api.com"},
		},
	}

	log := logger.NewNoOpLogger()
	templateCache := cache.NewRedisTemplateCache(client, config.CacheConfig{
		Enabled:      true,
		TTLSeconds:   300,
		ScanPageSize: 100,
	}, log)
	resolver := resolve.NewCachedResolver(resolve.NewService(fs, fs), templateCache)

	rlCfg := config.RateLimitConfig{Enabled: true, FailureMode: "open", UsageExpiryDays: 45}
	router := NewRouter(RouterDeps{
		Logger: zap.NewNop(),
		Credentials: fakeCredentials{
			"valid-key": {
				ApplicationID:     "app-1",
				EnvironmentID:     "env-1",
				RequestsPerSecond: rps,
				MonthlyQuota:      100000,
			},
		},
		Limiter:  ratelimit.NewLimiter(client, rlCfg, log),
		Usage:    ratelimit.NewUsageTracker(client, rlCfg, log),
		Handlers: NewHandlers(resolver),
	})

	return &testAPI{router: router, store: fs}
}

func (a *testAPI) get(path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestGetSystemTemplate_MissingKeyIs401(t *testing.T) {
	api := newTestAPI(t, 50)
	rec := api.get("/v1/templates/system", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetSystemTemplate_UnknownKeyIs401(t *testing.T) {
	api := newTestAPI(t, 50)
	rec := api.get("/v1/templates/system", "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetSystemTemplate_DefaultsWithNullAppliedIdentifier(t *testing.T) {
	api := newTestAPI(t, 50)
	rec := api.get("/v1/templates/system", "valid-key")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SYSTEM", body["type"])
	assert.Equal(t, map[string]any{"api_url": "https://default.api.com"}, body["values"])
	assert.Nil(t, body["appliedIdentifier"])
	assert.NotNil(t, body["schema"])
}

func TestGetSystemTemplate_WithIdentifierOverride(t *testing.T) {
	api := newTestAPI(t, 50)
	rec := api.get("/v1/templates/system?identifier=region-eu", "valid-key")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{"api_url": "https://eu.api.com"}, body["values"])
	assert.Equal(t, "region-eu", body["appliedIdentifier"])
}

func TestGetSystemTemplate_MissingTemplateIs404(t *testing.T) {
	api := newTestAPI(t, 50)
	api.store.schemas = map[string]*template.Schema{}

	rec := api.get("/v1/templates/system", "valid-key")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSystemTemplate_RateLimited429(t *testing.T) {
	api := newTestAPI(t, 2)

	for i := 0; i < 2; i++ {
		rec := api.get("/v1/templates/system", "valid-key")
		require.Equal(t, http.StatusOK, rec.Code, "request %d should be admitted", i)
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := api.get("/v1/templates/system", "valid-key")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestGetSystemTemplate_FailClosedBackendOutageIs503(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logger.NewNoOpLogger()
	rlCfg := config.RateLimitConfig{Enabled: true, FailureMode: "closed", UsageExpiryDays: 45}
	router := NewRouter(RouterDeps{
		Logger: zap.NewNop(),
		Credentials: fakeCredentials{
			"valid-key": {ApplicationID: "app-1", EnvironmentID: "env-1", RequestsPerSecond: 50},
		},
		Limiter:  ratelimit.NewLimiter(client, rlCfg, log),
		Usage:    ratelimit.NewUsageTracker(client, rlCfg, log),
		Handlers: NewHandlers(nil),
	})

	mr.Close()

	req := httptest.NewRequest(http.MethodGet, "/v1/templates/system", nil)
	req.Header.Set("X-API-Key", "valid-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// A limiter backend outage under fail closed is an outage, not
	// quota exhaustion: service unavailable, no Retry-After.
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "BACKEND_UNAVAILABLE", errBody["code"])
}

func TestRequestMetricsExported(t *testing.T) {
	gin.SetMode(gin.TestMode)

	obs := observability.New("customer-api-test")
	t.Cleanup(obs.Shutdown)

	router := NewRouter(RouterDeps{
		Logger:      zap.NewNop(),
		Credentials: fakeCredentials{},
		Limiter:     ratelimit.NoopLimiter{},
		Usage:       ratelimit.NoopUsageTracker{},
		Handlers:    NewHandlers(nil),
		Obs:         obs,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	api := newTestAPI(t, 50)

	assert.Equal(t, http.StatusOK, api.get("/healthz", "").Code)
	assert.Equal(t, http.StatusOK, api.get("/metrics", "").Code)
}

func TestRequestIDHeaderEchoedAndGenerated(t *testing.T) {
	api := newTestAPI(t, 50)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-me")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, "trace-me", rec.Header().Get("X-Request-ID"))

	rec = api.get("/healthz", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
