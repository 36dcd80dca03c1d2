package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bcgov/sbc-auth-sub003/pkg/authz"
	"github.com/bcgov/sbc-auth-sub003/pkg/config"
	"github.com/bcgov/sbc-auth-sub003/pkg/httputil"
	"github.com/bcgov/sbc-auth-sub003/pkg/middleware"
	"github.com/bcgov/sbc-auth-sub003/pkg/observability"
	"github.com/bcgov/sbc-auth-sub003/pkg/permissions"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("port", cfg.Server.Port).Info("starting auth-api")

	if err := run(cfg, logger); err != nil && err != context.Canceled {
		logger.WithError(err).Error("auth-api exited with error")
		os.Exit(1)
	}

	logger.Info("auth-api stopped")
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}
	if providers != nil {
		defer observability.ShutdownOTel(context.Background(), providers, logger)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Degraded, not fatal: rebuild notifications and the shared
			// read cache come back when Redis does.
			logger.WithError(err).Warn("redis unreachable at startup")
		}
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Permission engine.
	catalog := permissions.NewPostgresCatalog(db)
	cache := permissions.NewCache(catalog, metrics)

	var notifier *permissions.Notifier
	if redisClient != nil {
		notifier = permissions.NewNotifier(redisClient, logger)
	}

	// Authorization view with its read cache.
	projector := authz.NewProjector(db, metrics)
	var sharedCache *authz.RedisSearchCache
	if redisClient != nil {
		sharedCache = authz.NewRedisSearchCache(redisClient, cfg.Permissions.AuthzCacheTTL)
	}
	cachedProjector := authz.NewCachedProjector(projector, authz.CachedProjectorConfig{
		Size: cfg.Permissions.AuthzCacheSize,
		TTL:  cfg.Permissions.AuthzCacheTTL,
	}, sharedCache, logger)

	rebuild := func(ctx context.Context) error {
		if err := cache.BuildAll(ctx); err != nil {
			return err
		}
		cachedProjector.Purge(ctx)
		return nil
	}

	if cfg.Permissions.EagerBuild {
		if err := rebuild(ctx); err != nil {
			return err
		}
		logger.WithField("entries", cache.Len()).Info("permission cache built")
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	permissions.NewHandlers(cache, notifier).RegisterRoutes(api)
	authz.NewHandlers(cachedProjector).RegisterRoutes(api)

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		metrics.HTTPMiddleware,
		middleware.NewIdentityMiddleware(true).Handler,
	)(router)
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "auth-api")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api listener started")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health listener started")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if cfg.Permissions.RebuildSchedule != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Permissions.RebuildSchedule, func() {
			if err := rebuild(context.Background()); err != nil {
				logger.WithError(err).Error("scheduled cache rebuild failed")
			}
		}); err != nil {
			return err
		}
		scheduler.Start()
		logger.WithField("schedule", cfg.Permissions.RebuildSchedule).Info("cache rebuild scheduled")
		group.Go(func() error {
			<-gctx.Done()
			<-scheduler.Stop().Done()
			return nil
		})
	}

	if notifier != nil {
		group.Go(func() error {
			err := notifier.Listen(gctx, rebuild)
			if err != nil && err != context.Canceled {
				return err
			}
			return nil
		})
	}

	if cfg.Permissions.WatchSeed {
		watcher := permissions.NewSeedWatcher(cfg.Permissions.SeedPath, db, notifier, logger)
		group.Go(func() error {
			err := watcher.Run(gctx)
			if err != nil && err != context.Canceled {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("api server shutdown error")
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
