package idp

import (
	"context"
	"time"
)

// ExternalAccount is an account as reported by an identity provider
type ExternalAccount struct {
	ID          string
	Email       string
	DisplayName string

	// IDToken is a provider-signed token for the account, when the provider
	// returns one. ExpiresIn is its lifetime.
	IDToken   string
	ExpiresIn time.Duration
}

// Provisioner creates accounts at the identity provider
type Provisioner interface {
	SignUp(ctx context.Context, email, password, displayName string) (*ExternalAccount, error)
}

// PasswordAuthenticator checks a password at the identity provider.
// Rejected credentials fail with auth.ErrInvalidCredentials.
type PasswordAuthenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*ExternalAccount, error)
}
