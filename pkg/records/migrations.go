package records

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/badge/pkg/storage"
)

// Component names the records schema in schema_migrations
const Component = "records"

// GetMigrations returns all records migrations
func GetMigrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create records table",
			SQL: `
				CREATE TABLE IF NOT EXISTS records (
					id VARCHAR(36) PRIMARY KEY,
					owner_id VARCHAR(128) NOT NULL,
					kind VARCHAR(32) NOT NULL,
					input TEXT NOT NULL,
					answer TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_records_owner_created ON records(owner_id, created_at DESC);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS records (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL,
					kind TEXT NOT NULL,
					input TEXT NOT NULL,
					answer TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_records_owner_created ON records(owner_id, created_at DESC);
			`,
		},
	}
}

// Migrate applies pending records migrations
func Migrate(ctx context.Context, db *sql.DB, dialect storage.Dialect, log *logrus.Logger) error {
	return storage.RunMigrations(ctx, db, dialect, Component, GetMigrations(), log)
}
