package users

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/platinummonkey/badge/pkg/auth"
)

// MaxEmailLength is the longest address accepted (RFC 5321 path limit)
const MaxEmailLength = 254

// NormalizeEmail returns the canonical form of an email address used for
// uniqueness and lookups. The same function runs on every write and read so
// "A@X.com" and "a@x.com" can never become two accounts.
func NormalizeEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", auth.ErrMalformed)
	}

	// Casers carry state and are not shared between goroutines
	normalized := cases.Fold().String(norm.NFKC.String(trimmed))

	if len(normalized) > MaxEmailLength {
		return "", fmt.Errorf("%w: email too long", auth.ErrMalformed)
	}
	at := strings.LastIndex(normalized, "@")
	if at <= 0 || at == len(normalized)-1 {
		return "", fmt.Errorf("%w: email must contain a local part and a domain", auth.ErrMalformed)
	}
	if strings.ContainsAny(normalized, " \t\r\n") {
		return "", fmt.Errorf("%w: email must not contain whitespace", auth.ErrMalformed)
	}

	return normalized, nil
}
