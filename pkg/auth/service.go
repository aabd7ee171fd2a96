package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/platinummonkey/badge/pkg/auth"

// Authenticator registers and logs in users. The local implementation is
// Service; delegated modes live in pkg/idp.
type Authenticator interface {
	Register(ctx context.Context, email, password, displayName string) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Me(ctx context.Context, identity *IdentityContext) (*UserIdentity, error)
}

// UserStore is the credential store the local Service depends on
type UserStore interface {
	CreateUser(ctx context.Context, email, secret, displayName string) (*UserIdentity, error)
	FindByEmail(ctx context.Context, email string) (*UserIdentity, error)
	FindByID(ctx context.Context, id string) (*UserIdentity, error)
}

// Service authenticates against locally held credentials and mints tokens
type Service struct {
	store  UserStore
	hasher *PasswordHasher
	issuer *Issuer
}

// NewService creates a new local authentication service
func NewService(store UserStore, hasher *PasswordHasher, issuer *Issuer) *Service {
	return &Service{
		store:  store,
		hasher: hasher,
		issuer: issuer,
	}
}

// Register creates an account and returns a session for it
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*Session, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "auth.Register")
	defer span.End()

	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, email, password, displayName)
	if err != nil {
		if !errors.Is(err, ErrDuplicateEmail) && !errors.Is(err, ErrMalformed) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "create user failed")
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	return s.session(user)
}

// Login checks email and password. Unknown email and wrong password are
// indistinguishable to the caller: both return ErrInvalidCredentials after
// the same amount of hashing work.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "auth.Login")
	defer span.End()

	user, err := s.store.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrMalformed):
		s.hasher.VerifyDummy(password)
		return nil, ErrInvalidCredentials
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !s.hasher.Verify(password, user.VerificationMaterial) {
		return nil, ErrInvalidCredentials
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	return s.session(user)
}

// Me loads the account bound to an already verified identity
func (s *Service) Me(ctx context.Context, identity *IdentityContext) (*UserIdentity, error) {
	if identity == nil || identity.Subject == "" {
		return nil, ErrUnauthenticated
	}
	return s.store.FindByID(ctx, identity.Subject)
}

func (s *Service) session(user *UserIdentity) (*Session, error) {
	token, claims, err := s.issuer.Issue(user, 0)
	if err != nil {
		return nil, err
	}
	return &Session{
		User:        user,
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   claims.ExpiresAt,
	}, nil
}

// ExpiresIn returns the whole seconds left on the session token at now
func (s *Session) ExpiresIn(now time.Time) int64 {
	if s.AccessToken == "" || s.ExpiresAt.IsZero() {
		return 0
	}
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
