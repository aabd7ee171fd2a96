// Package storage provides the shared persistence plumbing for badge.
//
// # Overview
//
// Two SQL backends are supported behind database/sql:
//
//   - postgres (github.com/lib/pq) for deployments
//   - sqlite3 (github.com/mattn/go-sqlite3) for local runs and tests
//
// Packages that own tables (users, records) declare their schema as a list of
// Migration values and apply it with RunMigrations. Each owner keeps its own
// version sequence, tracked per component in the schema_migrations table.
//
// # Connections
//
//	db, err := storage.Open(ctx, storage.Config{
//		Driver: storage.DialectPostgres,
//		URL:    "postgres://badge@localhost/badge?sslmode=disable",
//	})
//
// # Uniqueness
//
// Uniqueness is enforced by the database, never by a read-before-write check.
// IsUniqueViolation recognises the constraint error of either driver so callers
// can translate it into a domain error.
//
// # Redis
//
// NewRedisClient connects the optional Redis instance used for distributed
// rate limiting.
package storage
