// Package observability carries the ambient concerns of the badge server:
// JSON logging on logrus, Prometheus counters, health probes, OTLP tracing,
// panic recovery and graceful shutdown.
//
// # Logging
//
//	logger, err := observability.NewLogger("info", os.Stdout)
//	ctx = observability.WithLogger(ctx, logger.WithField("component", "api"))
//	observability.FromContext(ctx).Info("request served")
//
// FromContext adds request_id and user_id when the request carries them.
// Token material and password hashes are never passed to a logger.
//
// # Metrics
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	metrics.RegisterRoutes(router)
//
// badge_token_verifications_total{result} counts every bearer token check
// made by the identity resolver. HTTP series are labelled with the mux route
// template rather than the raw path.
//
// # Health
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	checker.RegisterRoutes(router)
//
// /health/live never touches dependencies. /health/ready answers 503 when
// the database is unreachable; a Redis outage only degrades the status.
//
// # Tracing
//
//	tp, err := observability.InitTracing(ctx, observability.TracingConfig{...}, logger)
//	defer observability.ShutdownTracing(ctx, tp)
package observability
