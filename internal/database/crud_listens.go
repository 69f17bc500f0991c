// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/remcostoeten/pulse/internal/models"
)

// InsertListens stores a batch of playback records, skipping rows already
// present. Dedup is on (track_id, played_at): the recently-played feed
// overlaps between sync runs, and overlapping rows are silently ignored.
// Returns the number of rows that were actually new.
func (db *DB) InsertListens(ctx context.Context, listens []models.SpotifyListen) (int64, error) {
	if len(listens) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO listens (
		id, track_id, name, artist, album, external_url, image_url, played_at, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (track_id, played_at) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare listen insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for i := range listens {
		l := &listens[i]
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = time.Now()
		}

		res, err := stmt.ExecContext(ctx,
			l.ID, l.TrackID, l.Name, l.Artist, l.Album,
			l.ExternalURL, l.ImageURL, l.PlayedAt, l.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert listen %s: %w", l.TrackID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read insert result: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// GetRecentListens returns the newest listens ordered by play time
// descending.
func (db *DB) GetRecentListens(ctx context.Context, limit int) ([]models.SpotifyListen, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.conn.QueryContext(ctx, `SELECT
		id, track_id, name, artist, album, external_url, image_url, played_at, created_at
	FROM listens ORDER BY played_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent listens: %w", err)
	}
	defer rows.Close()
	return scanListens(rows)
}

// CountListens returns the total number of stored listens.
func (db *DB) CountListens(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM listens`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count listens: %w", err)
	}
	return n, nil
}

func scanListens(rows *sql.Rows) ([]models.SpotifyListen, error) {
	listens := make([]models.SpotifyListen, 0)
	for rows.Next() {
		var l models.SpotifyListen
		if err := rows.Scan(&l.ID, &l.TrackID, &l.Name, &l.Artist, &l.Album,
			&l.ExternalURL, &l.ImageURL, &l.PlayedAt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan listen row: %w", err)
		}
		listens = append(listens, l)
	}
	return listens, rows.Err()
}
