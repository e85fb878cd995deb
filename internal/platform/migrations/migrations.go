package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// statements holds the schema in application order. Every statement is
// idempotent so Apply can run on every startup. Foreign keys cascade-delete
// child rows: removing an app removes its deployments removes their packages.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE,
		identity_ref TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS access_keys (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		friendly_name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		is_session BOOLEAN NOT NULL DEFAULT FALSE,
		expires TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS account_access_keys (
		access_key_id TEXT NOT NULL REFERENCES access_keys(id) ON DELETE CASCADE,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		expires TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (access_key_id, account_id)
	)`,
	`CREATE TABLE IF NOT EXISTS apps (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		collaborators JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS account_apps (
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		app_id TEXT NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
		is_owner BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (account_id, app_id)
	)`,
	`CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		app_id TEXT NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		key TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS packages (
		id TEXT PRIMARY KEY,
		deployment_id TEXT NOT NULL REFERENCES deployments(id) ON DELETE CASCADE,
		label TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_disabled BOOLEAN NOT NULL DEFAULT FALSE,
		is_mandatory BOOLEAN NOT NULL DEFAULT FALSE,
		rollout INTEGER,
		app_version TEXT NOT NULL DEFAULT '',
		package_hash TEXT NOT NULL DEFAULT '',
		blob_id TEXT NOT NULL DEFAULT '',
		manifest_blob_id TEXT NOT NULL DEFAULT '',
		release_method TEXT NOT NULL DEFAULT '',
		released_by TEXT NOT NULL DEFAULT '',
		original_label TEXT NOT NULL DEFAULT '',
		original_deployment TEXT NOT NULL DEFAULT '',
		size BIGINT NOT NULL DEFAULT 0,
		upload_time TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS blobs (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// Apply executes all migration statements in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
