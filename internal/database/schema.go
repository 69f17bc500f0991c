// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package database

import (
	"context"
	"fmt"
)

// Schema notes:
//   - commits dedup on (repo_full_name, hash); the same hash can appear
//     in a fork under a different repo name and both are kept.
//   - listens dedup on (track_id, played_at); a replay of the same track
//     at a different timestamp is a distinct row.
//   - sync_metadata holds one row per provider, overwritten every
//     attempt, so the last outcome is observable even after failures.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS commits (
		id UUID PRIMARY KEY,
		hash TEXT NOT NULL,
		short_hash TEXT NOT NULL,
		message TEXT NOT NULL,
		author_name TEXT NOT NULL DEFAULT '',
		repo_full_name TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		committed_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (repo_full_name, hash)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_commits_committed_at ON commits (committed_at DESC)`,

	`CREATE TABLE IF NOT EXISTS listens (
		id UUID PRIMARY KEY,
		track_id TEXT NOT NULL,
		name TEXT NOT NULL,
		artist TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		external_url TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		played_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (track_id, played_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listens_played_at ON listens (played_at DESC)`,

	`CREATE TABLE IF NOT EXISTS sync_metadata (
		provider TEXT PRIMARY KEY,
		last_synced_at TIMESTAMPTZ NOT NULL,
		last_status TEXT NOT NULL,
		last_error TEXT NOT NULL DEFAULT '',
		last_duration_ms BIGINT NOT NULL DEFAULT 0,
		records_added BIGINT NOT NULL DEFAULT 0
	)`,
}

// createSchema creates all tables and indexes if they do not exist.
func (db *DB) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
