// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// AuthMiddleware is the identity context resolver: it reads
// "Authorization: Bearer <token>", runs the configured auth.Verifier and
// stores the resulting auth.IdentityContext on the request context.
//
//	authn := middleware.NewAuthMiddleware(verifier, metrics, logger)
//	protected.Use(authn.Handler)
//
// Every rejection, whatever the gate, is the same 401 body with a
// "WWW-Authenticate: Bearer" challenge. The gate is only logged and counted
// in badge_token_verifications_total.
//
// RateLimitMiddleware limits requests per client IP with any Limiter:
//
//	limiter := middleware.NewRateLimiter(cfg)                    // per instance
//	limiter := middleware.NewDistributedRateLimiter(rdb, cfg, "") // shared via Redis
//	router.Use(middleware.NewRateLimitMiddleware(limiter, metrics, logger, false).Handler)
//
// Limiter failures fail open by default.
package middleware
