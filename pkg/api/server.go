package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/badge/pkg/audit"
	"github.com/platinummonkey/badge/pkg/auth"
	"github.com/platinummonkey/badge/pkg/httputil"
	"github.com/platinummonkey/badge/pkg/middleware"
	"github.com/platinummonkey/badge/pkg/observability"
	"github.com/platinummonkey/badge/pkg/records"
)

// Options wires the server to its collaborators. Authenticator, Verifier
// and Records are required; everything else is optional.
type Options struct {
	Authenticator auth.Authenticator
	Verifier      auth.Verifier
	Records       *records.Store
	Answerer      records.Answerer

	// Limiter guards the credential endpoints; nil disables rate limiting
	Limiter    middleware.Limiter
	TrustProxy bool

	// TracerProvider enables a server span per request; nil disables it
	TracerProvider trace.TracerProvider

	Metrics *observability.Metrics
	Health  *observability.HealthChecker
	Logger  *logrus.Logger

	// Audit receives authentication events; nil discards them
	Audit audit.Logger
}

// Server represents our API server
type Server struct {
	router        *mux.Router
	authenticator auth.Authenticator
	verifier      auth.Verifier
	records       *records.Store
	answerer      records.Answerer
	metrics       *observability.Metrics
	logger        *logrus.Logger
	audit         audit.Logger
	trustProxy    bool
	now           func() time.Time
}

// NewServer creates a new API server with all routes registered
func NewServer(opts Options) (*Server, error) {
	if opts.Authenticator == nil || opts.Verifier == nil || opts.Records == nil {
		return nil, fmt.Errorf("%w: api server needs an authenticator, a verifier and a record store", auth.ErrMisconfigured)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Audit == nil {
		opts.Audit = audit.NoOpLogger{}
	}

	s := &Server{
		router:        mux.NewRouter(),
		authenticator: opts.Authenticator,
		verifier:      opts.Verifier,
		records:       opts.Records,
		answerer:      opts.Answerer,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		audit:         opts.Audit,
		trustProxy:    opts.TrustProxy,
		now:           time.Now,
	}
	s.setupRoutes(opts)
	return s, nil
}

func (s *Server) setupRoutes(opts Options) {
	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		observability.RecoveryMiddleware(s.logger),
		httputil.MaxBytesMiddleware(httputil.MaxBodyBytes),
	)
	if opts.TracerProvider != nil {
		s.router.Use(otelhttp.NewMiddleware("badge",
			otelhttp.WithTracerProvider(opts.TracerProvider),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + observability.RouteLabel(r)
			}),
		))
	}
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
		s.metrics.RegisterRoutes(s.router)
	}
	if opts.Health != nil {
		opts.Health.RegisterRoutes(s.router)
	}

	limit := func(h http.HandlerFunc) http.Handler { return h }
	if opts.Limiter != nil {
		rl := middleware.NewRateLimitMiddleware(opts.Limiter, s.metrics, s.logger, s.trustProxy)
		limit = func(h http.HandlerFunc) http.Handler { return rl.Handler(h) }
	}
	authn := middleware.NewAuthMiddleware(s.verifier, s.metrics, s.logger)
	protect := func(h http.HandlerFunc) http.Handler { return authn.Handler(h) }

	s.router.Handle("/auth/register", limit(s.register)).Methods(http.MethodPost)
	s.router.Handle("/auth/login", limit(s.login)).Methods(http.MethodPost)
	s.router.Handle("/auth/verify-token", limit(s.verifyToken)).Methods(http.MethodPost)
	s.router.Handle("/auth/me", protect(s.me)).Methods(http.MethodGet)

	s.router.Handle("/ask", protect(s.createAsk)).Methods(http.MethodPost)
	s.router.Handle("/ask", protect(s.listAsks)).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router so callers can mount extra routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// NewHTTPServer wraps handler in an http.Server with the given timeouts
func NewHTTPServer(addr string, handler http.Handler, read, write, idle time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      write,
		IdleTimeout:       idle,
	}
}
