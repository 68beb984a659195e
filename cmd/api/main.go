package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lightchurch_backend/internal/adapters"
	"lightchurch_backend/internal/churches"
	"lightchurch_backend/internal/churches/geocheck"
	churchrepo "lightchurch_backend/internal/churches/repository"
	"lightchurch_backend/internal/events"
	"lightchurch_backend/internal/geocoding"
	apphttp "lightchurch_backend/internal/http"
	"lightchurch_backend/internal/http/router"
	"lightchurch_backend/internal/maps"
	"lightchurch_backend/internal/scheduler"
	"lightchurch_backend/migrations"
	"lightchurch_backend/platform/config"
	"lightchurch_backend/platform/db"
	"lightchurch_backend/platform/logger"
	"lightchurch_backend/platform/redisx"
	"lightchurch_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS, log)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	redisClient := initRedis(ctx, cfg, log)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	chain := geocoding.NewChainFromConfig(cfg, geocoding.NewThrottle(redisClient, cfg), log)

	mapsModule := maps.NewModule(chain, maps.SessionOptions{
		Debounce:  cfg.GetAddressDebounce(),
		TTL:       cfg.GetAddressSessionTTL(),
		Logger:    log,
		Validator: val,
	}, val, log)

	churchRepo := churchrepo.New(pool)
	addressSessions := adapters.NewAddressSessionsAdapter(mapsModule.Sessions())
	churchesModule := churches.NewModule(churchRepo, addressSessions, eventBus, val, log)

	geocheckClient, closeGeocheck := initGeocheckScheduler(cfg, log)
	if closeGeocheck != nil {
		defer closeGeocheck()
		geocheck.NewSubscriber(geocheckClient, log).Register(eventBus)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			mapsModule,
			churchesModule,
		},
	}

	if err := apphttp.Serve(ctx, app, router.New(app), 10*time.Second); err != nil {
		log.Error("server error", "error", err)
		eventBus.Wait()
		panic("server error: " + err.Error())
	}
	eventBus.Wait()
	log.Info("server stopped")
}

func initRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; geocoder throttling is per process")
		return nil
	}

	client, err := redisx.NewClient(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis; geocoder throttling is per process", "error", err)
		return nil
	}
	return client
}

func initGeocheckScheduler(cfg config.SchedulerConfig, log *logger.Logger) (geocheck.Enqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; manual address verification disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize geocheck scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
