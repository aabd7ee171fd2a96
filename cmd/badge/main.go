package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/badge/pkg/api"
	"github.com/platinummonkey/badge/pkg/audit"
	"github.com/platinummonkey/badge/pkg/config"
	"github.com/platinummonkey/badge/pkg/middleware"
	"github.com/platinummonkey/badge/pkg/observability"
	"github.com/platinummonkey/badge/pkg/records"
	"github.com/platinummonkey/badge/pkg/storage"
	"github.com/platinummonkey/badge/pkg/users"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create logger")
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("badge exited with error")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: version,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	dbConfig, err := cfg.Database.Storage()
	if err != nil {
		return err
	}
	db, err := storage.Open(ctx, dbConfig)
	if err != nil {
		return err
	}
	if err := users.Migrate(ctx, db, dbConfig.Driver, logger); err != nil {
		return err
	}
	if err := records.Migrate(ctx, db, dbConfig.Driver, logger); err != nil {
		return err
	}
	logger.WithField("driver", dbConfig.Driver).Info("Credential store ready")

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = storage.NewRedisClient(ctx, storage.RedisConfig{URL: cfg.Redis.URL})
		if err != nil {
			return err
		}
		logger.Info("Connected to redis")
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
		metrics.RegisterDBStats(db, "badge")
	}

	authenticator, verifier, err := buildAuth(ctx, cfg, db, logger)
	if err != nil {
		return err
	}

	limiterConfig := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Redis.RateLimitPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.Redis.RateLimitBurst,
	}
	var limiter middleware.Limiter
	switch {
	case cfg.Redis.RateLimitPerMinute == 0:
		logger.Warn("Rate limiting disabled")
	case redisClient != nil:
		limiter = middleware.NewDistributedRateLimiter(redisClient, limiterConfig, "")
	default:
		inMemory := middleware.NewRateLimiter(limiterConfig)
		inMemory.StartCleanup(ctx)
		limiter = inMemory
	}

	var auditLog audit.Logger = audit.NewLogrusLogger(logger)
	if cfg.Audit.Dir != "" {
		fileLog, err := audit.NewFileLogger(audit.FileLoggerConfig{
			BasePath: cfg.Audit.Dir,
			MaxSize:  int64(cfg.Audit.MaxSizeMB) * 1024 * 1024,
			MaxFiles: cfg.Audit.MaxFiles,
		})
		if err != nil {
			return err
		}
		auditLog = fileLog
	}

	opts := api.Options{
		Authenticator: authenticator,
		Verifier:      verifier,
		Records:       records.NewStore(db),
		Limiter:       limiter,
		TrustProxy:    cfg.Server.TrustProxy,
		Metrics:       metrics,
		Health:        observability.NewHealthChecker(db, redisClient, version),
		Logger:        logger,
		Audit:         auditLog,
	}
	if tp != nil {
		opts.TracerProvider = tp
	}
	server, err := api.NewServer(opts)
	if err != nil {
		return err
	}

	httpServer := api.NewHTTPServer(cfg.Server.Addr(), server,
		cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout)

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register("tracing", func(ctx context.Context) error {
		return observability.ShutdownTracing(ctx, tp)
	})
	shutdown.Register("audit", func(context.Context) error { return auditLog.Close() })
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"addr":      httpServer.Addr,
			"auth_mode": cfg.Auth.Mode,
			"version":   version,
		}).Info("Starting badge")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return shutdown.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	// The database goes last so in-flight requests can finish
	if cerr := db.Close(); cerr != nil {
		logger.WithError(cerr).Warn("Failed to close database")
	}
	return err
}
