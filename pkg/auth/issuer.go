package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenTTL is used when no TTL is configured
	DefaultTokenTTL = 30 * time.Minute
	// TokenTypeBearer is reported to clients alongside access tokens
	TokenTypeBearer = "bearer"
)

// tokenClaims is the wire form of Claims
type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints signed, time-bounded identity tokens
type Issuer struct {
	key    *SigningKey
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption configures an Issuer
type IssuerOption func(*Issuer)

// WithIssuerClock overrides the time source
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an issuer. It fails when the key is absent or the
// defaults are unusable.
func NewIssuer(key *SigningKey, issuer string, defaultTTL time.Duration, opts ...IssuerOption) (*Issuer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: signing key is required", ErrMisconfigured)
	}
	if issuer == "" {
		return nil, fmt.Errorf("%w: token issuer is required", ErrMisconfigured)
	}
	if defaultTTL == 0 {
		defaultTTL = DefaultTokenTTL
	}
	if err := validateTTL(defaultTTL); err != nil {
		return nil, err
	}

	i := &Issuer{
		key:    key,
		issuer: issuer,
		ttl:    defaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// DefaultTTL returns the configured token lifetime
func (i *Issuer) DefaultTTL() time.Duration {
	return i.ttl
}

// Issue signs a token for user valid for ttl. A zero ttl selects the default.
func (i *Issuer) Issue(user *UserIdentity, ttl time.Duration) (string, *Claims, error) {
	if user == nil || user.ID == "" {
		return "", nil, fmt.Errorf("%w: user id is required", ErrMalformed)
	}
	if ttl == 0 {
		ttl = i.ttl
	}
	if err := validateTTL(ttl); err != nil {
		return "", nil, err
	}

	// NumericDate has second precision; truncate so exp-iat stays exactly ttl.
	now := i.now().UTC().Truncate(time.Second)
	claims := &Claims{
		Subject:     user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Issuer:      i.issuer,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
	}

	token := jwt.NewWithClaims(i.key.method, &tokenClaims{
		Email: claims.Email,
		Name:  claims.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    claims.Issuer,
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})

	signed, err := token.SignedString(i.key.signKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: token ttl must be positive", ErrMisconfigured)
	}
	if ttl%time.Second != 0 {
		return fmt.Errorf("%w: token ttl must be a whole number of seconds", ErrMisconfigured)
	}
	return nil
}
