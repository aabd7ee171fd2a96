package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/badge/pkg/auth"
	"github.com/platinummonkey/badge/pkg/storage"
)

const userColumns = `id, email, display_name, password_hash, provider, created_at`

// Store handles user identity persistence
type Store struct {
	db     *sql.DB
	hasher *auth.PasswordHasher
	now    func() time.Time
}

// NewStore creates a new user store. hasher may be nil when the store only
// mirrors accounts owned by an external identity provider.
func NewStore(db *sql.DB, hasher *auth.PasswordHasher) *Store {
	return &Store{
		db:     db,
		hasher: hasher,
		now:    time.Now,
	}
}

// CreateUser registers a local account. The secret is hashed before it
// reaches the database; a taken email fails with auth.ErrDuplicateEmail.
func (s *Store) CreateUser(ctx context.Context, email, secret, displayName string) (*auth.UserIdentity, error) {
	if s.hasher == nil {
		return nil, fmt.Errorf("%w: user store has no password hasher", auth.ErrMisconfigured)
	}

	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	material, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}

	user := &auth.UserIdentity{
		ID:                   uuid.NewString(),
		Email:                strings.TrimSpace(email),
		DisplayName:          strings.TrimSpace(displayName),
		Provider:             auth.ProviderLocal,
		CreatedAt:            s.timestamp(),
		VerificationMaterial: material,
	}

	query := `
		INSERT INTO users (id, email, email_normalized, display_name, password_hash, provider, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		normalized,
		user.DisplayName,
		user.VerificationMaterial,
		user.Provider,
		user.CreatedAt,
	)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, auth.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// CreateExternalUser mirrors an account owned by an external identity
// provider. It is idempotent on id; the email must not belong to another id.
func (s *Store) CreateExternalUser(ctx context.Context, id, email, displayName, provider string) (*auth.UserIdentity, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", auth.ErrMalformed)
	}
	if provider == "" || provider == auth.ProviderLocal {
		return nil, fmt.Errorf("%w: external provider name is required", auth.ErrMalformed)
	}

	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (id, email, email_normalized, display_name, password_hash, provider, created_at)
		VALUES ($1, $2, $3, $4, '', $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			email_normalized = excluded.email_normalized,
			display_name = CASE WHEN excluded.display_name <> '' THEN excluded.display_name ELSE users.display_name END
	`
	_, err = s.db.ExecContext(ctx, query,
		id,
		strings.TrimSpace(email),
		normalized,
		strings.TrimSpace(displayName),
		provider,
		s.timestamp(),
	)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, auth.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to upsert external user: %w", err)
	}

	return s.FindByID(ctx, id)
}

// FindByEmail retrieves a user by email, compared in normalized form
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.UserIdentity, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email_normalized = $1`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, normalized))
	if err != nil {
		return nil, lookupError(err)
	}
	return user, nil
}

// FindByID retrieves a user by ID
func (s *Store) FindByID(ctx context.Context, id string) (*auth.UserIdentity, error) {
	if id == "" {
		return nil, auth.ErrNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, lookupError(err)
	}
	return user, nil
}

// Count returns the number of stored users
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// timestamp is truncated to the precision Postgres keeps
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func scanUser(row *sql.Row) (*auth.UserIdentity, error) {
	var user auth.UserIdentity
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.VerificationMaterial,
		&user.Provider,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func lookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	return fmt.Errorf("failed to load user: %w", err)
}
