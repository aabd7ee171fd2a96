package auth

import "errors"

// Externally visible failure kinds.
var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrMalformed          = errors.New("malformed request")
	ErrMisconfigured      = errors.New("misconfigured")
	ErrNotFound           = errors.New("not found")
	ErrUnsupported        = errors.New("not supported by the identity provider")
)

// Token verification gates. These never leave the process; callers collapse
// them into ErrUnauthenticated.
var (
	ErrTokenMalformed   = errors.New("token malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
	ErrInvalidClaims    = errors.New("token claims invalid")
)

// Gate returns a short label for the verification gate err failed at,
// for logs and metrics.
func Gate(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrInvalidSignature):
		return "signature"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInvalidClaims):
		return "claims"
	default:
		return "error"
	}
}
