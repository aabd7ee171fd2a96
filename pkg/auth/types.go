package auth

import (
	"context"
	"time"

	"github.com/platinummonkey/badge/pkg/contextkeys"
)

// ProviderLocal marks accounts whose password material is held by this service
const ProviderLocal = "local"

// UserIdentity represents a registered account
type UserIdentity struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"full_name,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// VerificationMaterial is the password hash; empty for accounts
	// delegated to an external identity provider.
	VerificationMaterial string `json:"-"`
}

// HasLocalCredentials reports whether the account can log in with a password
// checked by this service.
func (u *UserIdentity) HasLocalCredentials() bool {
	return u.VerificationMaterial != ""
}

// Claims are the identity facts carried by a signed token
type Claims struct {
	Subject     string    `json:"sub"`
	Email       string    `json:"email"`
	DisplayName string    `json:"name,omitempty"`
	Issuer      string    `json:"iss"`
	IssuedAt    time.Time `json:"iat"`
	ExpiresAt   time.Time `json:"exp"`
}

// IdentityContext is the request-scoped result of a successful verification.
// It is never persisted and never shared across requests.
type IdentityContext struct {
	Subject     string
	Email       string
	DisplayName string

	// Issuer and ExpiresAt are kept for diagnostics only.
	Issuer    string
	ExpiresAt time.Time
}

// IdentityFromClaims builds an IdentityContext from verified claims
func IdentityFromClaims(c *Claims) *IdentityContext {
	return &IdentityContext{
		Subject:     c.Subject,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		Issuer:      c.Issuer,
		ExpiresAt:   c.ExpiresAt,
	}
}

// Session is the outcome of a successful registration or login
type Session struct {
	User        *UserIdentity
	AccessToken string // empty when the identity provider requires client-side login
	TokenType   string
	ExpiresAt   time.Time
}

// WithIdentity returns a copy of ctx carrying identity
func WithIdentity(ctx context.Context, identity *IdentityContext) context.Context {
	ctx = contextkeys.WithIdentity(ctx, identity)
	return contextkeys.WithUserID(ctx, identity.Subject)
}

// IdentityFromContext extracts the identity placed by the authentication middleware
func IdentityFromContext(ctx context.Context) (*IdentityContext, bool) {
	identity, ok := ctx.Value(contextkeys.IdentityKey).(*IdentityContext)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
