package idp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/badge/pkg/auth"
)

// ProviderOIDC names accounts mirrored from a generic OpenID Connect provider
const ProviderOIDC = "oidc"

// DefaultAlgorithms are accepted when none are configured
var DefaultAlgorithms = []string{oidc.RS256}

// OIDCConfig describes an OpenID Connect identity provider
type OIDCConfig struct {
	IssuerURL  string
	ClientID   string   // expected audience
	Algorithms []string // pinned signing algorithms
	Now        func() time.Time
}

// OIDCVerifier verifies ID tokens minted by an external provider. Keys are
// fetched from the provider's JWKS and cached by go-oidc.
type OIDCVerifier struct {
	issuer   string
	endpoint oauth2.Endpoint
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider at cfg.IssuerURL
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) (*OIDCVerifier, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("%w: oidc issuer url is required", auth.ErrMisconfigured)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: oidc client id is required", auth.ErrMisconfigured)
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &OIDCVerifier{
		issuer:   cfg.IssuerURL,
		endpoint: provider.Endpoint(),
		verifier: provider.Verifier(verifierConfig(cfg)),
	}, nil
}

// NewOIDCVerifierWithKeySet builds a verifier without discovery
func NewOIDCVerifierWithKeySet(cfg OIDCConfig, keySet oidc.KeySet) (*OIDCVerifier, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: oidc issuer url and client id are required", auth.ErrMisconfigured)
	}
	if keySet == nil {
		return nil, fmt.Errorf("%w: oidc key set is required", auth.ErrMisconfigured)
	}
	return &OIDCVerifier{
		issuer:   cfg.IssuerURL,
		verifier: oidc.NewVerifier(cfg.IssuerURL, keySet, verifierConfig(cfg)),
	}, nil
}

func verifierConfig(cfg OIDCConfig) *oidc.Config {
	algs := cfg.Algorithms
	if len(algs) == 0 {
		algs = DefaultAlgorithms
	}
	return &oidc.Config{
		ClientID:             cfg.ClientID,
		SupportedSigningAlgs: algs,
		Now:                  cfg.Now,
	}
}

// Endpoint returns the provider's OAuth2 endpoints (empty without discovery)
func (v *OIDCVerifier) Endpoint() oauth2.Endpoint {
	return v.endpoint
}

// Verify checks an ID token and maps its claims into an IdentityContext
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*auth.IdentityContext, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, auth.ErrTokenMalformed
	}

	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, classifyOIDCError(err)
	}
	if idToken.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", auth.ErrInvalidClaims)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidClaims, err)
	}

	return &auth.IdentityContext{
		Subject:     idToken.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		Issuer:      idToken.Issuer,
		ExpiresAt:   idToken.Expiry.UTC(),
	}, nil
}

// go-oidc reports most failures as plain strings
func classifyOIDCError(err error) error {
	var expired *oidc.TokenExpiredError
	if errors.As(err, &expired) {
		return fmt.Errorf("%w: %v", auth.ErrExpired, err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "malformed jwt"):
		return fmt.Errorf("%w: %v", auth.ErrTokenMalformed, err)
	case strings.Contains(msg, "signature"), strings.Contains(msg, "unsupported algorithm"):
		return fmt.Errorf("%w: %v", auth.ErrInvalidSignature, err)
	case strings.Contains(msg, "different provider"), strings.Contains(msg, "audience"),
		strings.Contains(msg, "nbf"), strings.Contains(msg, "claims"):
		return fmt.Errorf("%w: %v", auth.ErrInvalidClaims, err)
	default:
		// Key fetch and other infrastructure failures
		return fmt.Errorf("oidc verification failed: %w", err)
	}
}
