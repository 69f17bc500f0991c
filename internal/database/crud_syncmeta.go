// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/remcostoeten/pulse/internal/models"
)

// UpsertSyncMetadata records the outcome of a sync attempt. One row per
// provider, overwritten every attempt, so the last outcome is always
// observable regardless of success or failure.
func (db *DB) UpsertSyncMetadata(ctx context.Context, meta models.SyncMetadata) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO sync_metadata (
		provider, last_synced_at, last_status, last_error, last_duration_ms, records_added
	) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (provider) DO UPDATE SET
		last_synced_at = excluded.last_synced_at,
		last_status = excluded.last_status,
		last_error = excluded.last_error,
		last_duration_ms = excluded.last_duration_ms,
		records_added = excluded.records_added`,
		string(meta.Provider), meta.LastSyncedAt, string(meta.LastStatus),
		meta.LastError, meta.LastDurationMs, meta.RecordsAdded)
	if err != nil {
		return fmt.Errorf("failed to upsert sync metadata for %s: %w", meta.Provider, err)
	}
	return nil
}

// GetSyncMetadata returns the last sync attempt for one provider.
func (db *DB) GetSyncMetadata(ctx context.Context, provider models.Provider) (*models.SyncMetadata, error) {
	var m models.SyncMetadata
	var p, status string
	err := db.conn.QueryRowContext(ctx, `SELECT
		provider, last_synced_at, last_status, last_error, last_duration_ms, records_added
	FROM sync_metadata WHERE provider = ?`, string(provider)).Scan(
		&p, &m.LastSyncedAt, &status, &m.LastError, &m.LastDurationMs, &m.RecordsAdded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sync metadata for %s: %w", provider, err)
	}
	m.Provider = models.Provider(p)
	m.LastStatus = models.SyncStatus(status)
	return &m, nil
}

// GetAllSyncMetadata returns the last attempt for every provider that has
// ever synced, ordered by provider name for stable output.
func (db *DB) GetAllSyncMetadata(ctx context.Context) ([]models.SyncMetadata, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT
		provider, last_synced_at, last_status, last_error, last_duration_ms, records_added
	FROM sync_metadata ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync metadata: %w", err)
	}
	defer rows.Close()

	metas := make([]models.SyncMetadata, 0)
	for rows.Next() {
		var m models.SyncMetadata
		var p, status string
		if err := rows.Scan(&p, &m.LastSyncedAt, &status, &m.LastError,
			&m.LastDurationMs, &m.RecordsAdded); err != nil {
			return nil, fmt.Errorf("failed to scan sync metadata row: %w", err)
		}
		m.Provider = models.Provider(p)
		m.LastStatus = models.SyncStatus(status)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}
