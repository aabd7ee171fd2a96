package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/badge/pkg/auth"
)

const (
	// ProviderFirebase names accounts mirrored from Firebase Authentication
	ProviderFirebase = "firebase"

	// DefaultIdentityToolkitURL is the Firebase Auth REST base
	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"

	firebaseIssuerPrefix = "https://securetoken.google.com/"
)

// FirebaseIssuer returns the ID token issuer for a Firebase project
func FirebaseIssuer(projectID string) string {
	return firebaseIssuerPrefix + projectID
}

// LoadProjectID reads project_id from a service account JSON file
func LoadProjectID(credentialsPath string) (string, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read firebase credentials: %v", auth.ErrMisconfigured, err)
	}

	var creds struct {
		Type      string `json:"type"`
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("%w: invalid firebase credentials: %v", auth.ErrMisconfigured, err)
	}
	if creds.ProjectID == "" {
		return "", fmt.Errorf("%w: firebase credentials have no project_id", auth.ErrMisconfigured)
	}
	return creds.ProjectID, nil
}

// NewFirebaseVerifier verifies Firebase ID tokens for projectID
func NewFirebaseVerifier(ctx context.Context, projectID string) (*OIDCVerifier, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: firebase project id is required", auth.ErrMisconfigured)
	}
	return NewOIDCVerifier(ctx, OIDCConfig{
		IssuerURL:  FirebaseIssuer(projectID),
		ClientID:   projectID,
		Algorithms: DefaultAlgorithms,
	})
}

// FirebaseClient talks to the Identity Toolkit REST API with the web API
// key. It is the PasswordAuthenticator for Firebase; the Admin SDK has no
// password sign-in.
type FirebaseClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// FirebaseOption configures a FirebaseClient
type FirebaseOption func(*FirebaseClient)

// WithBaseURL points the client at another Identity Toolkit (the emulator, tests)
func WithBaseURL(baseURL string) FirebaseOption {
	return func(c *FirebaseClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(client *http.Client) FirebaseOption {
	return func(c *FirebaseClient) {
		c.httpClient = client
	}
}

// NewFirebaseClient creates a client authenticated with the web API key
func NewFirebaseClient(apiKey string, opts ...FirebaseOption) (*FirebaseClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: firebase api key is required", auth.ErrMisconfigured)
	}
	c := &FirebaseClient{
		apiKey:     apiKey,
		baseURL:    DefaultIdentityToolkitURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type firebaseAccountResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
	ExpiresIn   string `json:"expiresIn"`
}

func (r *firebaseAccountResponse) account() *ExternalAccount {
	acct := &ExternalAccount{
		ID:          r.LocalID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		IDToken:     r.IDToken,
	}
	if secs, err := strconv.Atoi(r.ExpiresIn); err == nil && secs > 0 {
		acct.ExpiresIn = time.Duration(secs) * time.Second
	}
	return acct
}

// firebaseError is the error envelope of the REST API
type firebaseError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignInWithPassword checks an email/password pair
func (c *FirebaseClient) SignInWithPassword(ctx context.Context, email, password string) (*ExternalAccount, error) {
	var resp firebaseAccountResponse
	err := c.call(ctx, "accounts:signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.account(), nil
}

func (c *FirebaseClient) call(ctx context.Context, method string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s?key=%s", c.baseURL, method, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL carries the API key; keep it out of the error
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("identity toolkit %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("identity toolkit %s: %w", method, err)
	}

	if resp.StatusCode != http.StatusOK {
		var fe firebaseError
		_ = json.Unmarshal(data, &fe)
		return mapFirebaseError(method, resp.StatusCode, fe.Error.Message)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("identity toolkit %s: invalid response: %w", method, err)
	}
	return nil
}

// mapFirebaseError translates Identity Toolkit error codes. Messages look
// like "INVALID_EMAIL : The email address is badly formatted.".
func mapFirebaseError(method string, status int, message string) error {
	code, _, _ := strings.Cut(message, " ")
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED":
		return auth.ErrInvalidCredentials
	case "INVALID_EMAIL", "MISSING_PASSWORD", "MISSING_EMAIL":
		return fmt.Errorf("%w: %s", auth.ErrMalformed, message)
	}
	return fmt.Errorf("identity toolkit %s: status %d: %s", method, status, message)
}
