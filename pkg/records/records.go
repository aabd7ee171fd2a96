package records

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/badge/pkg/auth"
)

const (
	// KindAsk marks records created by the ask endpoint
	KindAsk = "ask"

	DefaultListLimit = 50
	MaxListLimit     = 200
	MaxInputLength   = 8192
)

// Record is an application record owned by exactly one user
type Record struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Kind      string    `json:"kind"`
	Input     string    `json:"input"`
	Answer    string    `json:"answer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Answerer produces an answer for an ask input. It is optional; records are
// stored without an answer when none is configured.
type Answerer interface {
	Answer(ctx context.Context, input string) (string, error)
}

// Store persists records
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new record store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Create stores a record for ownerID. The owner always comes from the
// verified identity, never from the request body.
func (s *Store) Create(ctx context.Context, ownerID, kind, input, answer string) (*Record, error) {
	if ownerID == "" {
		return nil, auth.ErrUnauthenticated
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("%w: input is required", auth.ErrMalformed)
	}
	if len(input) > MaxInputLength {
		return nil, fmt.Errorf("%w: input longer than %d bytes", auth.ErrMalformed, MaxInputLength)
	}
	if kind == "" {
		kind = KindAsk
	}

	record := &Record{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Kind:      kind,
		Input:     input,
		Answer:    answer,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}

	query := `
		INSERT INTO records (id, owner_id, kind, input, answer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.OwnerID,
		record.Kind,
		record.Input,
		record.Answer,
		record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	return record, nil
}

// ListByOwner returns ownerID's records, newest first
func (s *Store) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*Record, error) {
	if ownerID == "" {
		return nil, auth.ErrUnauthenticated
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `
		SELECT id, owner_id, kind, input, answer, created_at
		FROM records
		WHERE owner_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Kind, &r.Input, &r.Answer, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}
