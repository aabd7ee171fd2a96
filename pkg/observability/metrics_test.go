package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NotNil(t, metrics)
	assert.Same(t, registry, metrics.Registry())

	// Registering twice on the same registry must panic
	assert.Panics(t, func() { NewMetrics(registry) })

	assert.NotNil(t, NewMetrics(nil).Registry())
}

func TestMetrics_Observers(t *testing.T) {
	metrics := NewMetrics(nil)

	metrics.ObserveTokenVerification(ResultSuccess)
	metrics.ObserveTokenVerification(ResultSuccess)
	metrics.ObserveTokenVerification(ResultExpired)
	metrics.ObserveLogin(ResultInvalid)
	metrics.ObserveRegistration(ResultDuplicate)
	metrics.ObserveTokenIssued()
	metrics.ObserveRateLimited("/auth/login")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.TokenVerificationsTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TokenVerificationsTotal.WithLabelValues(ResultExpired)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues(ResultInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RegistrationsTotal.WithLabelValues(ResultDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TokensIssuedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RateLimitedTotal.WithLabelValues("/auth/login")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.ObserveTokenVerification(ResultSuccess)
		metrics.ObserveLogin(ResultSuccess)
		metrics.ObserveRegistration(ResultSuccess)
		metrics.ObserveTokenIssued()
		metrics.ObserveRateLimited("/")
	})
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	metrics := NewMetrics(nil)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/ask/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	for _, path := range []string{"/ask/1", "/ask/2"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/ask/{id}", "418")))
}

func TestMetrics_Endpoint(t *testing.T) {
	metrics := NewMetrics(nil)
	metrics.ObserveTokenVerification(ResultMissing)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	metrics.RegisterDBStats(db, "badge")

	router := mux.NewRouter()
	metrics.RegisterRoutes(router)

	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(text, `badge_token_verifications_total{result="missing"} 1`), text)
	assert.Contains(t, text, "go_sql_open_connections")
}
