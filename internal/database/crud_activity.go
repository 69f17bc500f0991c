// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package database

import (
	"context"
	"fmt"

	"github.com/remcostoeten/pulse/internal/models"
)

// GetCombinedActivity merges commits and listens into one reverse
// chronological feed. Each source is bounded by its own limit before the
// merge, so a burst of listens cannot crowd commits out of the feed. Ties
// on the timestamp sort commits before listens so the ordering is
// deterministic across runs. The merge happens in SQL via UNION ALL over
// both per-source subqueries, so the database does the interleaving.
func (db *DB) GetCombinedActivity(ctx context.Context, commitLimit, listenLimit int) ([]models.ActivityItem, error) {
	if commitLimit <= 0 {
		commitLimit = 20
	}
	if listenLimit <= 0 {
		listenLimit = 20
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT kind, occurred_at, id FROM (
			SELECT 'commit' AS kind, committed_at AS occurred_at, CAST(id AS VARCHAR) AS id
			FROM commits ORDER BY committed_at DESC LIMIT ?
		)
		UNION ALL
		SELECT kind, occurred_at, id FROM (
			SELECT 'listen' AS kind, played_at AS occurred_at, CAST(id AS VARCHAR) AS id
			FROM listens ORDER BY played_at DESC LIMIT ?
		)
		ORDER BY occurred_at DESC, kind ASC`, commitLimit, listenLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query combined activity: %w", err)
	}
	defer rows.Close()

	type ref struct {
		kind string
		id   string
	}
	refs := make([]ref, 0, commitLimit+listenLimit)
	for rows.Next() {
		var r ref
		var occurredAt any
		if err := rows.Scan(&r.kind, &occurredAt, &r.id); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read combined activity: %w", err)
	}

	// Hydrate full records in per-row lookups keyed by id. The feed is
	// small (bounded by the limits) so an in-memory join is fine.
	items := make([]models.ActivityItem, 0, len(refs))
	for _, r := range refs {
		switch r.kind {
		case "commit":
			c, err := db.getCommitByID(ctx, r.id)
			if err != nil {
				return nil, err
			}
			items = append(items, models.ActivityItem{Type: "commit", OccurredAt: c.CommittedAt, Commit: c})
		case "listen":
			l, err := db.getListenByID(ctx, r.id)
			if err != nil {
				return nil, err
			}
			items = append(items, models.ActivityItem{Type: "listen", OccurredAt: l.PlayedAt, Listen: l})
		}
	}
	return items, nil
}

func (db *DB) getCommitByID(ctx context.Context, id string) (*models.CommitRecord, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+commitColumns+` FROM commits WHERE id = ?`, id)
	c, err := scanCommit(row)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", id, err)
	}
	return c, nil
}

func (db *DB) getListenByID(ctx context.Context, id string) (*models.SpotifyListen, error) {
	var l models.SpotifyListen
	err := db.conn.QueryRowContext(ctx, `SELECT
		id, track_id, name, artist, album, external_url, image_url, played_at, created_at
	FROM listens WHERE id = ?`, id).Scan(
		&l.ID, &l.TrackID, &l.Name, &l.Artist, &l.Album,
		&l.ExternalURL, &l.ImageURL, &l.PlayedAt, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load listen %s: %w", id, err)
	}
	return &l, nil
}
