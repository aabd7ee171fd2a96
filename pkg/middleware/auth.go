package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/badge/pkg/auth"
	"github.com/platinummonkey/badge/pkg/contextkeys"
	"github.com/platinummonkey/badge/pkg/httputil"
	"github.com/platinummonkey/badge/pkg/observability"
)

// UnauthenticatedMessage is the only body a rejected request ever sees
const UnauthenticatedMessage = "unauthenticated"

// AuthMiddleware resolves the bearer token on each request into an
// auth.IdentityContext. Every failure produces the same 401; the gate that
// rejected the token is only logged and counted.
type AuthMiddleware struct {
	verifier auth.Verifier
	metrics  *observability.Metrics
	logger   *logrus.Logger
}

// NewAuthMiddleware creates a new authentication middleware. metrics may be nil.
func NewAuthMiddleware(verifier auth.Verifier, metrics *observability.Metrics, logger *logrus.Logger) *AuthMiddleware {
	if logger == nil {
		logger = logrus.New()
	}
	return &AuthMiddleware{
		verifier: verifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := httputil.BearerToken(r)
		if !ok {
			m.metrics.ObserveTokenVerification(observability.ResultMissing)
			httputil.WriteUnauthorized(w, UnauthenticatedMessage)
			return
		}

		identity, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			gate := auth.Gate(err)
			m.metrics.ObserveTokenVerification(gate)
			entry := m.entry(r).WithField("gate", gate)
			if gate == "error" {
				// Verifier infrastructure failure, not a bad token
				entry.WithError(err).Error("token verification failed")
			} else {
				entry.Info("token rejected")
			}
			httputil.WriteUnauthorized(w, UnauthenticatedMessage)
			return
		}

		m.metrics.ObserveTokenVerification(observability.ResultSuccess)
		ctx := auth.WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) entry(r *http.Request) *logrus.Entry {
	if _, ok := r.Context().Value(contextkeys.LoggerKey).(*logrus.Entry); ok {
		return observability.FromContext(r.Context())
	}
	return logrus.NewEntry(m.logger)
}

// GetIdentity extracts the identity resolved for r, or nil
func GetIdentity(r *http.Request) *auth.IdentityContext {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	return identity
}
