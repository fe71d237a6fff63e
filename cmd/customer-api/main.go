// cmd/customer-api/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hephaistos-io/pyro/internal/api"
	"github.com/hephaistos-io/pyro/internal/cache"
	"github.com/hephaistos-io/pyro/internal/common/config"
	"github.com/hephaistos-io/pyro/internal/common/database"
	"github.com/hephaistos-io/pyro/internal/common/logger"
	"github.com/hephaistos-io/pyro/internal/common/observability"
	"github.com/hephaistos-io/pyro/internal/events"
	"github.com/hephaistos-io/pyro/internal/ratelimit"
	"github.com/hephaistos-io/pyro/internal/resolve"
	"github.com/hephaistos-io/pyro/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting customer API...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("customer-api")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Wire resolution pipeline ---
	templateStore := store.NewPostgresStore(pg.DB)
	templateCache := cache.New(rdb.Client, cfg.Cache, log)
	resolver := resolve.NewCachedResolver(
		resolve.NewService(templateStore, templateStore),
		templateCache,
	)

	limiter := ratelimit.NewLimiter(rdb.Client, cfg.RateLimit, log)
	usage := ratelimit.NewUsageTracker(rdb.Client, cfg.RateLimit, log)

	// --- Invalidation subscription ---
	subscriber := events.NewSubscriber(rdb.Client, cfg.Cache.Channel, func(ctx context.Context, evt events.Event) {
		deleted := templateCache.Invalidate(ctx, evt)
		log.Debug("Processed cache invalidation", map[string]interface{}{
			"event_type":   string(evt.Type),
			"app_id":       evt.AppID,
			"keys_deleted": deleted,
		})
	}, log)

	if err := subscriber.Start(ctx); err != nil {
		// Degraded mode: entries only age out via TTL until the broker
		// comes back and the process restarts.
		zapLog.Warn("invalidation subscription failed, running degraded", zap.Error(err))
	}
	defer subscriber.Stop()

	// --- HTTP server ---
	router := api.NewRouter(api.RouterDeps{
		Logger:      zapLog,
		Credentials: api.NewPostgresCredentialStore(pg.DB),
		Limiter:     limiter,
		Usage:       usage,
		Handlers:    api.NewHandlers(resolver),
		Obs:         obs,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("Customer API listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping customer API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down http server", zap.Error(err))
	}

	subscriber.Stop()

	zapLog.Info("Customer API stopped gracefully")
}
