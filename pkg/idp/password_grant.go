package idp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/badge/pkg/auth"
)

// PasswordGrant checks passwords with the OAuth2 resource owner password
// credentials grant and verifies the returned ID token.
type PasswordGrant struct {
	config   *oauth2.Config
	verifier auth.Verifier
}

// NewPasswordGrant builds a grant against endpoint. The ID token in the
// response is checked with verifier.
func NewPasswordGrant(endpoint oauth2.Endpoint, clientID, clientSecret string, verifier auth.Verifier) (*PasswordGrant, error) {
	if endpoint.TokenURL == "" {
		return nil, fmt.Errorf("%w: provider has no token endpoint", auth.ErrMisconfigured)
	}
	if verifier == nil {
		return nil, fmt.Errorf("%w: id token verifier is required", auth.ErrMisconfigured)
	}
	return &PasswordGrant{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: verifier,
	}, nil
}

// SignInWithPassword exchanges the credentials for an ID token
func (g *PasswordGrant) SignInWithPassword(ctx context.Context, email, password string) (*ExternalAccount, error) {
	token, err := g.config.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("password grant failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: provider did not return an id_token", auth.ErrMisconfigured)
	}

	identity, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("provider returned an unverifiable id_token: %w", err)
	}

	acct := &ExternalAccount{
		ID:          identity.Subject,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		IDToken:     rawIDToken,
	}
	if ttl := time.Until(identity.ExpiresAt); ttl > 0 {
		acct.ExpiresIn = ttl.Truncate(time.Second)
	}
	return acct, nil
}
