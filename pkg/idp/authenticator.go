package idp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/badge/pkg/auth"
	"github.com/platinummonkey/badge/pkg/users"
)

// Mirror keeps local copies of provider accounts
type Mirror interface {
	CreateExternalUser(ctx context.Context, id, email, displayName, provider string) (*auth.UserIdentity, error)
	FindByID(ctx context.Context, id string) (*auth.UserIdentity, error)
}

// Authenticator implements auth.Authenticator by delegating credentials to
// an identity provider. The provider's ID token is handed to the client as
// the access token; accounts are mirrored locally so records have an owner.
type Authenticator struct {
	provider    string
	provisioner Provisioner
	passwords   PasswordAuthenticator
	mirror      Mirror
	logger      *logrus.Logger
	now         func() time.Time
}

// NewAuthenticator creates a delegated authenticator. provisioner and
// passwords may be nil; the matching operation then fails with
// auth.ErrUnsupported.
func NewAuthenticator(provider string, provisioner Provisioner, passwords PasswordAuthenticator, mirror Mirror, logger *logrus.Logger) (*Authenticator, error) {
	if provider == "" || provider == auth.ProviderLocal {
		return nil, fmt.Errorf("%w: external provider name is required", auth.ErrMisconfigured)
	}
	if mirror == nil {
		return nil, fmt.Errorf("%w: account mirror is required", auth.ErrMisconfigured)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Authenticator{
		provider:    provider,
		provisioner: provisioner,
		passwords:   passwords,
		mirror:      mirror,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Register creates the account at the provider, then mirrors it
func (a *Authenticator) Register(ctx context.Context, email, password, displayName string) (*auth.Session, error) {
	if a.provisioner == nil {
		return nil, fmt.Errorf("%w: registration", auth.ErrUnsupported)
	}
	if _, err := users.NormalizeEmail(email); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}

	acct, err := a.provisioner.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, err
	}
	if acct.DisplayName == "" {
		acct.DisplayName = displayName
	}
	return a.session(ctx, acct), nil
}

// Login checks the password at the provider
func (a *Authenticator) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	if a.passwords == nil {
		return nil, fmt.Errorf("%w: password login", auth.ErrUnsupported)
	}
	if email == "" || password == "" {
		return nil, auth.ErrInvalidCredentials
	}

	acct, err := a.passwords.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrMalformed) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}
	return a.session(ctx, acct), nil
}

// Me returns the mirrored account. A missing mirror is rebuilt from the
// verified identity.
func (a *Authenticator) Me(ctx context.Context, identity *auth.IdentityContext) (*auth.UserIdentity, error) {
	if identity == nil || identity.Subject == "" {
		return nil, auth.ErrUnauthenticated
	}

	user, err := a.mirror.FindByID(ctx, identity.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return nil, err
	}
	if identity.Email == "" {
		return nil, auth.ErrNotFound
	}
	return a.mirror.CreateExternalUser(ctx, identity.Subject, identity.Email, identity.DisplayName, a.provider)
}

// session mirrors acct and wraps it. The provider already owns the
// account, so a mirror failure is logged and the request still succeeds.
func (a *Authenticator) session(ctx context.Context, acct *ExternalAccount) *auth.Session {
	user, err := a.mirror.CreateExternalUser(ctx, acct.ID, acct.Email, acct.DisplayName, a.provider)
	if err != nil {
		a.logger.WithError(err).WithField("user_id", acct.ID).Error("failed to mirror provider account")
		user = &auth.UserIdentity{
			ID:          acct.ID,
			Email:       acct.Email,
			DisplayName: acct.DisplayName,
			Provider:    a.provider,
			CreatedAt:   a.now().UTC(),
		}
	}

	s := &auth.Session{
		User:        user,
		AccessToken: acct.IDToken,
		TokenType:   auth.TokenTypeBearer,
	}
	if acct.IDToken != "" && acct.ExpiresIn > 0 {
		s.ExpiresAt = a.now().Add(acct.ExpiresIn)
	}
	return s
}
