package idp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/badge/pkg/auth"
)

const (
	testAPIKey    = "test-api-key"
	testProjectID = "badge-test"
)

// fakeFirebase serves the Admin SDK user endpoints (through the auth
// emulator hook) and the Identity Toolkit password sign-in
type fakeFirebase struct {
	mu       sync.Mutex
	accounts map[string]fakeAccount // by email
	calls    []string
	created  []map[string]interface{}

	// failCreates rejects that many account creations before accepting
	failCreates int
}

type fakeAccount struct {
	id, password, name string
}

func newFakeFirebase(t *testing.T) (*fakeFirebase, *FirebaseAdmin, *FirebaseClient) {
	t.Helper()
	f := &fakeFirebase{accounts: map[string]fakeAccount{}}
	server := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(server.Close)

	t.Setenv("FIREBASE_AUTH_EMULATOR_HOST", strings.TrimPrefix(server.URL, "http://"))
	admin, err := NewFirebaseAdmin(context.Background(), testProjectID)
	require.NoError(t, err)

	client, err := NewFirebaseClient(testAPIKey, WithBaseURL(server.URL+"/"), WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return f, admin, client
}

func (f *fakeFirebase) fail(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"code": status, "message": message},
	})
}

func (f *fakeFirebase) ok(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeFirebase) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	str := func(key string) string {
		v, _ := body[key].(string)
		return v
	}

	switch path := r.URL.Path; {
	case strings.HasSuffix(path, ":signInWithPassword"):
		f.calls = append(f.calls, "signInWithPassword")
		if r.URL.Query().Get("key") != testAPIKey {
			f.fail(w, http.StatusBadRequest, "API_KEY_INVALID")
			return
		}
		acct, ok := f.accounts[str("email")]
		if !ok || acct.password != str("password") {
			f.fail(w, http.StatusBadRequest, "INVALID_LOGIN_CREDENTIALS")
			return
		}
		f.ok(w, map[string]string{
			"localId": acct.id, "email": str("email"), "displayName": acct.name,
			"idToken": "id-token-" + acct.id, "expiresIn": "3600",
		})

	case strings.HasSuffix(path, "/accounts:lookup"):
		f.calls = append(f.calls, "lookup")
		ids, _ := body["localId"].([]interface{})
		for email, acct := range f.accounts {
			if len(ids) == 1 && ids[0] == acct.id {
				f.ok(w, map[string]interface{}{
					"users": []map[string]string{{"localId": acct.id, "email": email, "displayName": acct.name}},
				})
				return
			}
		}
		f.fail(w, http.StatusBadRequest, "USER_NOT_FOUND")

	case strings.HasSuffix(path, "/accounts"):
		f.calls = append(f.calls, "create")
		f.created = append(f.created, body)
		email := str("email")
		if f.failCreates > 0 {
			f.failCreates--
			f.fail(w, http.StatusBadRequest, "OPERATION_NOT_ALLOWED")
			return
		}
		if email == "boom@x.com" {
			f.fail(w, http.StatusBadRequest, "OPERATION_NOT_ALLOWED")
			return
		}
		if _, exists := f.accounts[email]; exists {
			f.fail(w, http.StatusBadRequest, "EMAIL_EXISTS")
			return
		}
		id := "uid-" + email
		f.accounts[email] = fakeAccount{id: id, password: str("password"), name: str("displayName")}
		f.ok(w, map[string]string{"localId": id})

	default:
		f.calls = append(f.calls, path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestFirebaseAdmin_SignUpWritesNameWithAccount(t *testing.T) {
	fake, admin, client := newFakeFirebase(t)
	ctx := context.Background()

	acct, err := admin.SignUp(ctx, "a@x.com", "secret1", " Ada ")
	require.NoError(t, err)
	assert.Equal(t, "uid-a@x.com", acct.ID)
	assert.Equal(t, "a@x.com", acct.Email)
	assert.Equal(t, "Ada", acct.DisplayName)
	assert.Empty(t, acct.IDToken)

	// One write carries the display name; nothing is patched afterwards
	require.Len(t, fake.created, 1)
	assert.Equal(t, "Ada", fake.created[0]["displayName"])
	assert.NotContains(t, fake.calls, "update")
	assert.Equal(t, 1, countCalls(fake.calls, "create"))

	signedIn, err := client.SignInWithPassword(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, signedIn.ID)
	assert.Equal(t, "Ada", signedIn.DisplayName)
	assert.Equal(t, time.Hour, signedIn.ExpiresIn)
	assert.NotEmpty(t, signedIn.IDToken)
}

func TestFirebaseAdmin_SignUpWithoutName(t *testing.T) {
	fake, admin, _ := newFakeFirebase(t)

	acct, err := admin.SignUp(context.Background(), "a@x.com", "secret1", "  ")
	require.NoError(t, err)
	assert.Empty(t, acct.DisplayName)
	require.Len(t, fake.created, 1)
	assert.NotContains(t, fake.created[0], "displayName")
}

func TestFirebaseAdmin_ErrorMapping(t *testing.T) {
	fake, admin, _ := newFakeFirebase(t)
	ctx := context.Background()

	_, err := admin.SignUp(ctx, "a@x.com", "secret1", "")
	require.NoError(t, err)

	_, err = admin.SignUp(ctx, "a@x.com", "secret2", "")
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)

	calls := len(fake.calls)
	_, err = admin.SignUp(ctx, "b@x.com", "123", "")
	assert.ErrorIs(t, err, auth.ErrMalformed)
	assert.Len(t, fake.calls, calls)

	_, err = admin.SignUp(ctx, "boom@x.com", "secret1", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrDuplicateEmail)
	assert.NotErrorIs(t, err, auth.ErrMalformed)
}

func TestNewFirebaseAdmin_RequiresProject(t *testing.T) {
	_, err := NewFirebaseAdmin(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrMisconfigured)
}

func TestFirebaseClient_SignInErrors(t *testing.T) {
	_, admin, client := newFakeFirebase(t)
	ctx := context.Background()

	_, err := admin.SignUp(ctx, "a@x.com", "secret1", "")
	require.NoError(t, err)

	_, err = client.SignInWithPassword(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = client.SignInWithPassword(ctx, "nobody@x.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	badKey, err := NewFirebaseClient("other-key", WithBaseURL(client.baseURL))
	require.NoError(t, err)
	_, err = badKey.SignInWithPassword(ctx, "a@x.com", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.NotContains(t, err.Error(), "other-key")
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}

func TestFirebaseClient_TransportErrorHidesKey(t *testing.T) {
	client, err := NewFirebaseClient(testAPIKey, WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = client.SignInWithPassword(context.Background(), "a@x.com", "p")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testAPIKey)
}

func TestNewFirebaseClient_RequiresKey(t *testing.T) {
	_, err := NewFirebaseClient("")
	assert.ErrorIs(t, err, auth.ErrMisconfigured)
}

func TestLoadProjectID(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "sa.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"type":"service_account","project_id":"badge-prod"}`), 0o600))
	id, err := LoadProjectID(good)
	require.NoError(t, err)
	assert.Equal(t, "badge-prod", id)
	assert.Equal(t, "https://securetoken.google.com/badge-prod", FirebaseIssuer(id))

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"type":"service_account"}`), 0o600))
	_, err = LoadProjectID(empty)
	assert.ErrorIs(t, err, auth.ErrMisconfigured)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{`), 0o600))
	_, err = LoadProjectID(broken)
	assert.ErrorIs(t, err, auth.ErrMisconfigured)

	_, err = LoadProjectID(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, auth.ErrMisconfigured)

	_, err = NewFirebaseVerifier(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrMisconfigured)
}
