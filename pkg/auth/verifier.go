package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier turns a raw bearer token into an identity. Implementations are
// interchangeable: protected routes only ever see *IdentityContext.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*IdentityContext, error)
}

// TokenVerifier validates tokens minted by Issuer. It pins the algorithm of
// its key and never consults storage.
type TokenVerifier struct {
	key    *SigningKey
	issuer string
	parser *jwt.Parser
}

// VerifierOption configures a TokenVerifier
type VerifierOption func(*verifierOptions)

type verifierOptions struct {
	leeway time.Duration
	now    func() time.Time
}

// WithLeeway sets the clock skew tolerance applied to exp and iat
func WithLeeway(leeway time.Duration) VerifierOption {
	return func(o *verifierOptions) {
		o.leeway = leeway
	}
}

// WithVerifierClock overrides the time source
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(o *verifierOptions) {
		o.now = now
	}
}

// NewTokenVerifier creates a verifier bound to key and issuer
func NewTokenVerifier(key *SigningKey, issuer string, opts ...VerifierOption) (*TokenVerifier, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: verification key is required", ErrMisconfigured)
	}
	if issuer == "" {
		return nil, fmt.Errorf("%w: token issuer is required", ErrMisconfigured)
	}

	o := &verifierOptions{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.leeway < 0 {
		return nil, fmt.Errorf("%w: leeway must not be negative", ErrMisconfigured)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{key.Algorithm()}),
		jwt.WithIssuer(issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(o.leeway),
		jwt.WithTimeFunc(o.now),
	)

	return &TokenVerifier{key: key, issuer: issuer, parser: parser}, nil
}

// VerifyToken checks structure, signature, expiry and claims, in that order,
// and returns the recovered claims.
func (v *TokenVerifier) VerifyToken(rawToken string) (*Claims, error) {
	if rawToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenMalformed)
	}

	var wire tokenClaims
	_, err := v.parser.ParseWithClaims(rawToken, &wire, v.keyFunc)
	if err != nil {
		return nil, classifyJWTError(err)
	}

	if wire.Subject == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrInvalidClaims)
	}
	if wire.IssuedAt == nil {
		return nil, fmt.Errorf("%w: issued-at missing", ErrInvalidClaims)
	}
	if !wire.ExpiresAt.After(wire.IssuedAt.Time) {
		return nil, fmt.Errorf("%w: expiry not after issued-at", ErrInvalidClaims)
	}

	return &Claims{
		Subject:     wire.Subject,
		Email:       wire.Email,
		DisplayName: wire.Name,
		Issuer:      wire.Issuer,
		IssuedAt:    wire.IssuedAt.Time.UTC(),
		ExpiresAt:   wire.ExpiresAt.Time.UTC(),
	}, nil
}

// Verify implements Verifier
func (v *TokenVerifier) Verify(_ context.Context, rawToken string) (*IdentityContext, error) {
	claims, err := v.VerifyToken(rawToken)
	if err != nil {
		return nil, err
	}
	return IdentityFromClaims(claims), nil
}

func (v *TokenVerifier) keyFunc(t *jwt.Token) (interface{}, error) {
	// WithValidMethods already rejects other algorithms; this guards the
	// key family as well so an HMAC key is never fed a public-key header.
	if t.Method.Alg() != v.key.Algorithm() {
		return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
	}
	return v.key.verifyKey, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
}
