package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/platinummonkey/badge/pkg/auth"
	"github.com/platinummonkey/badge/pkg/config"
	"github.com/platinummonkey/badge/pkg/idp"
	"github.com/platinummonkey/badge/pkg/users"
)

// buildAuth picks the authenticator and verifier for the configured mode.
// Keys and provider metadata are loaded once here.
func buildAuth(ctx context.Context, cfg *config.Config, db *sql.DB, logger *logrus.Logger) (auth.Authenticator, auth.Verifier, error) {
	a := cfg.Auth

	switch a.Mode {
	case config.ModeLocal:
		key, err := a.SigningKey()
		if err != nil {
			return nil, nil, err
		}
		hasher, err := auth.NewPasswordHasher(a.BcryptCost)
		if err != nil {
			return nil, nil, err
		}
		issuer, err := auth.NewIssuer(key, a.JWTIssuer, a.TokenTTL)
		if err != nil {
			return nil, nil, err
		}
		verifier, err := auth.NewTokenVerifier(key, a.JWTIssuer, auth.WithLeeway(a.TokenLeeway))
		if err != nil {
			return nil, nil, err
		}
		store := users.NewCachedStore(users.NewStore(db, hasher), cfg.Cache.UserCacheSize, cfg.Cache.UserCacheTTL)
		logger.WithField("algorithm", key.Algorithm()).Info("Local token issuer ready")
		return auth.NewService(store, hasher, issuer), verifier, nil

	case config.ModeOIDC:
		verifier, err := idp.NewOIDCVerifier(ctx, idp.OIDCConfig{
			IssuerURL:  a.OIDCIssuerURL,
			ClientID:   a.OIDCClientID,
			Algorithms: a.OIDCAlgorithms,
		})
		if err != nil {
			return nil, nil, err
		}
		var passwords idp.PasswordAuthenticator
		if a.OIDCClientSecret != "" {
			grant, err := idp.NewPasswordGrant(verifier.Endpoint(), a.OIDCClientID, a.OIDCClientSecret, verifier)
			if err != nil {
				return nil, nil, err
			}
			passwords = grant
		} else {
			logger.Info("No OIDC client secret, /auth/login is disabled")
		}
		mirror := users.NewCachedStore(users.NewStore(db, nil), cfg.Cache.UserCacheSize, cfg.Cache.UserCacheTTL)
		authenticator, err := idp.NewAuthenticator(idp.ProviderOIDC, nil, passwords, mirror, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("issuer", a.OIDCIssuerURL).Info("OIDC verifier ready")
		return authenticator, verifier, nil

	case config.ModeFirebase:
		projectID := a.FirebaseProjectID
		if projectID == "" {
			var err error
			projectID, err = idp.LoadProjectID(a.FirebaseCredentialsPath)
			if err != nil {
				return nil, nil, err
			}
		}
		verifier, err := idp.NewFirebaseVerifier(ctx, projectID)
		if err != nil {
			return nil, nil, err
		}
		var provisioner idp.Provisioner
		if a.FirebaseCredentialsPath != "" {
			admin, err := idp.NewFirebaseAdmin(ctx, projectID, option.WithCredentialsFile(a.FirebaseCredentialsPath))
			if err != nil {
				return nil, nil, err
			}
			provisioner = admin
		} else {
			logger.Info("No Firebase credentials file, /auth/register is disabled")
		}
		var passwords idp.PasswordAuthenticator
		if a.FirebaseAPIKey != "" {
			client, err := idp.NewFirebaseClient(a.FirebaseAPIKey)
			if err != nil {
				return nil, nil, err
			}
			passwords = client
		} else {
			logger.Info("No Firebase API key, /auth/login is disabled")
		}
		mirror := users.NewCachedStore(users.NewStore(db, nil), cfg.Cache.UserCacheSize, cfg.Cache.UserCacheTTL)
		authenticator, err := idp.NewAuthenticator(idp.ProviderFirebase, provisioner, passwords, mirror, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("project_id", projectID).Info("Firebase verifier ready")
		return authenticator, verifier, nil
	}

	return nil, nil, fmt.Errorf("%w: unknown auth mode %q", auth.ErrMisconfigured, a.Mode)
}
