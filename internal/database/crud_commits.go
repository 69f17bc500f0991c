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
	"time"

	"github.com/google/uuid"

	"github.com/remcostoeten/pulse/internal/models"
)

// InsertCommits stores a batch of commit records, skipping rows that are
// already present. The (repo_full_name, hash) unique constraint plus
// ON CONFLICT DO NOTHING makes re-running a sync idempotent: re-inserting
// an existing commit is silently ignored. Returns the number of rows that
// were actually new.
func (db *DB) InsertCommits(ctx context.Context, commits []models.CommitRecord) (int64, error) {
	if len(commits) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO commits (
		id, hash, short_hash, message, author_name, repo_full_name, url, committed_at, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (repo_full_name, hash) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare commit insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for i := range commits {
		c := &commits[i]
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}

		res, err := stmt.ExecContext(ctx,
			c.ID, c.Hash, c.ShortHash, c.Message, c.AuthorName,
			c.RepoFullName, c.URL, c.CommittedAt, c.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert commit %s: %w", c.ShortHash, err)
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

const commitColumns = `id, hash, short_hash, message, author_name, repo_full_name, url, committed_at, created_at`

// GetRecentCommits returns the newest commits across all tracked repos,
// ordered by commit time descending.
func (db *DB) GetRecentCommits(ctx context.Context, limit int) ([]models.CommitRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+commitColumns+` FROM commits ORDER BY committed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent commits: %w", err)
	}
	defer rows.Close()
	return scanCommits(rows)
}

// GetLatestCommit returns the single newest stored commit, optionally
// restricted to one repo (empty repo means any).
func (db *DB) GetLatestCommit(ctx context.Context, repo string) (*models.CommitRecord, error) {
	query := `SELECT ` + commitColumns + ` FROM commits`
	args := []any{}
	if repo != "" {
		query += ` WHERE repo_full_name = ?`
		args = append(args, repo)
	}
	query += ` ORDER BY committed_at DESC LIMIT 1`

	row := db.conn.QueryRowContext(ctx, query, args...)
	c, err := scanCommit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest commit: %w", err)
	}
	return c, nil
}

// CountCommits returns the total number of stored commits.
func (db *DB) CountCommits(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM commits`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count commits: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommit(row rowScanner) (*models.CommitRecord, error) {
	var c models.CommitRecord
	if err := row.Scan(&c.ID, &c.Hash, &c.ShortHash, &c.Message, &c.AuthorName,
		&c.RepoFullName, &c.URL, &c.CommittedAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCommits(rows *sql.Rows) ([]models.CommitRecord, error) {
	commits := make([]models.CommitRecord, 0)
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commit row: %w", err)
		}
		commits = append(commits, *c)
	}
	return commits, rows.Err()
}
