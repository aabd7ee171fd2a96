package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/badge/pkg/audit"
	"github.com/platinummonkey/badge/pkg/auth"
	"github.com/platinummonkey/badge/pkg/middleware"
	"github.com/platinummonkey/badge/pkg/observability"
	"github.com/platinummonkey/badge/pkg/records"
	"github.com/platinummonkey/badge/pkg/storage"
	"github.com/platinummonkey/badge/pkg/users"
)

const testIssuer = "badge-test"

type testEnv struct {
	server  *Server
	users   *users.Store
	key     *auth.SigningKey
	metrics *observability.Metrics
}

type envOption func(*Options)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(ctx, storage.Config{Driver: storage.DialectSQLite, URL: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log, _ := test.NewNullLogger()
	require.NoError(t, users.Migrate(ctx, db, storage.DialectSQLite, log))
	require.NoError(t, records.Migrate(ctx, db, storage.DialectSQLite, log))

	key, err := auth.NewHMACKey("HS256", []byte(strings.Repeat("k", 32)))
	require.NoError(t, err)
	issuer, err := auth.NewIssuer(key, testIssuer, 30*time.Minute)
	require.NoError(t, err)
	verifier, err := auth.NewTokenVerifier(key, testIssuer)
	require.NoError(t, err)
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	store := users.NewStore(db, hasher)
	metrics := observability.NewMetrics(nil)

	options := Options{
		Authenticator: auth.NewService(store, hasher, issuer),
		Verifier:      verifier,
		Records:       records.NewStore(db),
		Metrics:       metrics,
		Health:        observability.NewHealthChecker(db, nil, "test"),
		Logger:        log,
	}
	for _, opt := range opts {
		opt(&options)
	}

	server, err := NewServer(options)
	require.NoError(t, err)

	return &testEnv{server: server, users: store, key: key, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:4321"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, email, password string) SessionResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Email: email, Password: password, FullName: "Test User"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var session SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	_, err := NewServer(Options{})
	assert.ErrorIs(t, err, auth.ErrMisconfigured)
}

func TestEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	registered := env.register(t, "a@x.com", "p1")
	assert.NotEmpty(t, registered.AccessToken)
	assert.Equal(t, "bearer", registered.TokenType)
	assert.InDelta(t, 1800, registered.ExpiresIn, 1)
	assert.Equal(t, "a@x.com", registered.User.Email)
	assert.Equal(t, "Test User", registered.User.FullName)
	assert.Empty(t, registered.Message)

	rec := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "A@X.com", Password: "p1"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[SessionResponse](t, rec)
	require.NotEmpty(t, login.AccessToken)
	assert.Equal(t, registered.User.ID, login.User.ID)

	rec = env.do(t, http.MethodPost, "/auth/verify-token", "", VerifyTokenRequest{Token: login.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)
	verified := decode[VerifyTokenResponse](t, rec)
	assert.True(t, verified.Valid)
	require.NotNil(t, verified.User)
	assert.Equal(t, registered.User.ID, verified.User.Subject)
	assert.Equal(t, "a@x.com", verified.User.Email)
	assert.Equal(t, testIssuer, verified.User.Issuer)
	assert.Greater(t, verified.User.ExpiresAt, time.Now().Unix())

	rec = env.do(t, http.MethodGet, "/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[UserResponse](t, rec)
	assert.Equal(t, registered.User.ID, me.ID)
	assert.Equal(t, "a@x.com", me.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = env.do(t, http.MethodPost, "/ask", login.AccessToken, map[string]string{"input": "what is 2+2?", "owner_id": "someone-else"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[records.Record](t, rec)
	assert.Equal(t, registered.User.ID, created.OwnerID)
	assert.Equal(t, "what is 2+2?", created.Input)

	rec = env.do(t, http.MethodGet, "/ask", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[AskListResponse](t, rec)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, created.ID, list.Records[0].ID)

	// A second user sees none of the first user's records
	other := env.register(t, "b@x.com", "p2")
	rec = env.do(t, http.MethodGet, "/ask", other.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[AskListResponse](t, rec).Count)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.LoginsTotal.WithLabelValues(observability.ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.RegistrationsTotal.WithLabelValues(observability.ResultSuccess)))
	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.TokensIssuedTotal))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "p1")

	for _, email := range []string{"a@x.com", "A@X.COM", " a@x.com "} {
		rec := env.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Email: email, Password: "p2"})
		assert.Equal(t, http.StatusConflict, rec.Code, email)
		assert.JSONEq(t, `{"error":"email already registered"}`, rec.Body.String())
	}

	n, err := env.users.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegister_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "empty body", body: nil},
		{name: "not json", body: "email=a@x.com"},
		{name: "trailing data", body: `{"email":"a@x.com","password":"p"} {}`},
		{name: "missing password", body: RegisterRequest{Email: "a@x.com"}},
		{name: "missing email", body: RegisterRequest{Password: "p1"}},
		{name: "no domain", body: RegisterRequest{Email: "a@", Password: "p1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	n, err := env.users.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegister_DisplayNameAlias(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Email: "a@x.com", Password: "p1", DisplayName: "Ada"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Ada", decode[SessionResponse](t, rec).User.FullName)
}

func TestLogin_UniformFailure(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "p1")

	wrongPassword := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "a@x.com", Password: "nope"})
	unknownEmail := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "nobody@x.com", Password: "p1"})
	emptyEmail := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Password: "p1"})

	for _, rec := range []*httptest.ResponseRecorder{wrongPassword, unknownEmail, emptyEmail} {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.LoginsTotal.WithLabelValues(observability.ResultInvalid)))
}

func TestProtectedRoutes_RejectUniformly(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "a@x.com", "p1")

	past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredIssuer, err := auth.NewIssuer(env.key, testIssuer, time.Hour, auth.WithIssuerClock(past))
	require.NoError(t, err)
	user, err := env.users.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	expired, _, err := expiredIssuer.Issue(user, 0)
	require.NoError(t, err)

	otherKey, err := auth.NewHMACKey("HS256", []byte(strings.Repeat("o", 32)))
	require.NoError(t, err)
	otherIssuer, err := auth.NewIssuer(otherKey, testIssuer, time.Hour)
	require.NoError(t, err)
	forged, _, err := otherIssuer.Issue(user, 0)
	require.NoError(t, err)

	tokens := map[string]string{
		"missing":   "",
		"garbage":   "not-a-token",
		"expired":   expired,
		"forged":    forged,
		"truncated": session.AccessToken[:len(session.AccessToken)-5],
	}

	for name, token := range tokens {
		for _, route := range []struct{ method, path string }{
			{http.MethodGet, "/auth/me"},
			{http.MethodGet, "/ask"},
			{http.MethodPost, "/ask"},
		} {
			t.Run(name+" "+route.method+" "+route.path, func(t *testing.T) {
				rec := env.do(t, route.method, route.path, token, map[string]string{"input": "hi"})
				assert.Equal(t, http.StatusUnauthorized, rec.Code)
				assert.JSONEq(t, `{"error":"unauthenticated"}`, rec.Body.String())
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			})
		}
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.TokenVerificationsTotal.WithLabelValues("expired")))
}

func TestVerifyToken(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "a@x.com", "p1")

	rec := env.do(t, http.MethodPost, "/auth/verify-token", "", VerifyTokenRequest{Token: "abc.def.ghi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"valid":false}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/auth/verify-token", "", VerifyTokenRequest{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"valid":false}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/auth/verify-token?token="+session.AccessToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.User.ID, decode[VerifyTokenResponse](t, rec).User.Subject)

	rec = env.do(t, http.MethodPost, "/auth/verify-token", "", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAsk_Validation(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "a@x.com", "p1")

	rec := env.do(t, http.MethodPost, "/ask", session.AccessToken, map[string]string{"input": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/ask", session.AccessToken, strings.Repeat("x", 10))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/ask?limit=many", session.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubAnswerer struct {
	answer string
	err    error
}

func (a stubAnswerer) Answer(context.Context, string) (string, error) {
	return a.answer, a.err
}

func TestAsk_Answerer(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.Answerer = stubAnswerer{answer: "4"} })
	session := env.register(t, "a@x.com", "p1")

	rec := env.do(t, http.MethodPost, "/ask", session.AccessToken, AskRequest{Input: "2+2?"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "4", decode[records.Record](t, rec).Answer)

	failing := newTestEnv(t, func(o *Options) { o.Answerer = stubAnswerer{err: errors.New("model offline")} })
	session = failing.register(t, "a@x.com", "p1")

	rec = failing.do(t, http.MethodPost, "/ask", session.AccessToken, AskRequest{Input: "2+2?"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, decode[records.Record](t, rec).Answer)
}

func TestCredentialRoutes_RateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Hour})
	env := newTestEnv(t, func(o *Options) { o.Limiter = limiter })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "a@x.com", Password: "p1"})
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RateLimitedTotal.WithLabelValues("/auth/login")))

	// Health checks are not limited
	rec := env.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type delegatedOnly struct{}

func (delegatedOnly) Register(context.Context, string, string, string) (*auth.Session, error) {
	return nil, auth.ErrUnsupported
}

func (delegatedOnly) Login(context.Context, string, string) (*auth.Session, error) {
	return nil, errors.New("provider unreachable")
}

func (delegatedOnly) Me(context.Context, *auth.IdentityContext) (*auth.UserIdentity, error) {
	return nil, auth.ErrNotFound
}

func TestServiceErrors(t *testing.T) {
	env := newTestEnv(t)
	session := env.register(t, "a@x.com", "p1")

	delegated := newTestEnv(t, func(o *Options) { o.Authenticator = delegatedOnly{} })

	rec := delegated.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Email: "a@x.com", Password: "p1"})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = delegated.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "a@x.com", Password: "p1"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "unreachable")

	// Both environments share the signing key, so the token is valid here
	rec = delegated.do(t, http.MethodGet, "/auth/me", session.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type sessionWithoutToken struct{ delegatedOnly }

func (sessionWithoutToken) Register(_ context.Context, email, _, name string) (*auth.Session, error) {
	return &auth.Session{User: &auth.UserIdentity{ID: "uid-1", Email: email, DisplayName: name, Provider: "firebase"}}, nil
}

func TestRegister_ClientSideLogin(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.Authenticator = sessionWithoutToken{} })

	rec := env.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Email: "a@x.com", Password: "p1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	session := decode[SessionResponse](t, rec)
	assert.Empty(t, session.AccessToken)
	assert.Zero(t, session.ExpiresIn)
	assert.Equal(t, "bearer", session.TokenType)
	assert.NotEmpty(t, session.Message)
	assert.Equal(t, "firebase", session.User.Provider)
	assert.Zero(t, testutil.ToFloat64(env.metrics.TokensIssuedTotal))
}

func TestOperationalRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "a@x.com", Password: "p1"})
	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "badge_logins_total")
	assert.Contains(t, rec.Body.String(), `route="/auth/login"`)

	rec = env.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/auth/login", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.NotNil(t, env.server.Router())
}

func TestAuditTrail(t *testing.T) {
	trail, err := audit.NewFileLogger(audit.FileLoggerConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	defer trail.Close()

	env := newTestEnv(t, func(o *Options) { o.Audit = trail })
	session := env.register(t, "a@x.com", "p1")
	env.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Email: "a@x.com", Password: "p1"})
	env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "a@x.com", Password: "wrong-password"})
	env.do(t, http.MethodPost, "/auth/verify-token", "", VerifyTokenRequest{Token: "garbage"})

	events, err := trail.ReadLogs(0)
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, audit.EventTypeRegister, events[0].EventType)
	assert.Equal(t, audit.EventStatusSuccess, events[0].Status)
	assert.Equal(t, session.User.ID, events[0].Subject)
	assert.Equal(t, "192.0.2.10", events[0].IPAddress)
	assert.NotEmpty(t, events[0].RequestID)

	assert.Equal(t, "duplicate_email", events[1].Reason)
	assert.Equal(t, audit.EventTypeLogin, events[2].EventType)
	assert.Equal(t, "invalid_credentials", events[2].Reason)
	assert.Equal(t, audit.EventStatusDenied, events[3].Status)
	assert.Equal(t, "malformed", events[3].Reason)

	raw, err := json.Marshal(events)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "wrong-password")
	assert.NotContains(t, string(raw), session.AccessToken)
}

func TestTracing_SpanPerRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	env := newTestEnv(t, func(o *Options) { o.TracerProvider = tp })
	env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "a@x.com", Password: "p1"})

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "POST /auth/login")
}
