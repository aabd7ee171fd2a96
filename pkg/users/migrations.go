package users

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/badge/pkg/storage"
)

// Component names the users schema in schema_migrations
const Component = "users"

// GetMigrations returns all users migrations
func GetMigrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id VARCHAR(128) PRIMARY KEY,
					email VARCHAR(254) NOT NULL,
					email_normalized VARCHAR(254) NOT NULL,
					display_name TEXT NOT NULL DEFAULT '',
					password_hash TEXT NOT NULL DEFAULT '',
					provider VARCHAR(32) NOT NULL DEFAULT 'local',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT users_email_normalized_key UNIQUE (email_normalized)
				);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					email TEXT NOT NULL,
					email_normalized TEXT NOT NULL UNIQUE,
					display_name TEXT NOT NULL DEFAULT '',
					password_hash TEXT NOT NULL DEFAULT '',
					provider TEXT NOT NULL DEFAULT 'local',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
	}
}

// Migrate applies pending users migrations
func Migrate(ctx context.Context, db *sql.DB, dialect storage.Dialect, log *logrus.Logger) error {
	return storage.RunMigrations(ctx, db, dialect, Component, GetMigrations(), log)
}
