package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLength is the longest secret bcrypt accepts without truncation
const MaxPasswordLength = 72

// PasswordHasher hashes and checks passwords with bcrypt
type PasswordHasher struct {
	cost  int
	dummy []byte
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
// A zero cost selects bcrypt.DefaultCost.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: bcrypt cost %d outside [%d, %d]", ErrMisconfigured, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	// Compared against when the account does not exist, so a miss costs
	// as much as a wrong password.
	dummy, err := bcrypt.GenerateFromPassword([]byte("badge-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &PasswordHasher{cost: cost, dummy: dummy}, nil
}

// Cost returns the configured bcrypt cost
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns salted verification material for secret
func (h *PasswordHasher) Hash(secret string) (string, error) {
	if err := ValidatePassword(secret); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether secret matches material. It never says why not.
// Secrets past MaxPasswordLength never match; bcrypt would only read a prefix.
func (h *PasswordHasher) Verify(secret, material string) bool {
	if material == "" || len(secret) > MaxPasswordLength {
		h.VerifyDummy(secret)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(material), []byte(secret)) == nil
}

// VerifyDummy burns the same work as Verify against a fixed hash
func (h *PasswordHasher) VerifyDummy(secret string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(secret))
}

// ValidatePassword checks the shape of a password before it is hashed
func ValidatePassword(secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: password is required", ErrMalformed)
	}
	if len(secret) > MaxPasswordLength {
		return fmt.Errorf("%w: password longer than %d bytes", ErrMalformed, MaxPasswordLength)
	}
	return nil
}
