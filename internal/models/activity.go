// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

// Package models defines the canonical records shared between the sync
// orchestrator, the activity store and the read API.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies an external activity source.
type Provider string

const (
	ProviderGitHub  Provider = "github"
	ProviderSpotify Provider = "spotify"
)

// Valid reports whether p names a known provider.
func (p Provider) Valid() bool {
	return p == ProviderGitHub || p == ProviderSpotify
}

// CommitRecord is a normalized GitHub commit.
// Uniqueness invariant: one row per (RepoFullName, Hash).
type CommitRecord struct {
	ID           uuid.UUID `json:"-"`
	Hash         string    `json:"hash"`
	ShortHash    string    `json:"shortHash"`
	Message      string    `json:"message"`
	AuthorName   string    `json:"authorName"`
	RepoFullName string    `json:"repoFullName"`
	URL          string    `json:"url"`
	CommittedAt  time.Time `json:"committedAt"`
	CreatedAt    time.Time `json:"-"`
}

// SpotifyListen is a normalized playback record.
// One row per (TrackID, PlayedAt): a replayed track at a different
// timestamp is a distinct listen.
type SpotifyListen struct {
	ID          uuid.UUID `json:"-"`
	TrackID     string    `json:"trackId"`
	Name        string    `json:"name"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album"`
	ExternalURL string    `json:"externalUrl"`
	ImageURL    string    `json:"imageUrl"`
	PlayedAt    time.Time `json:"playedAt"`
	CreatedAt   time.Time `json:"-"`
}

// SyncStatus records the outcome of a sync attempt.
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailure SyncStatus = "failure"
)

// SyncMetadata is the per-provider last-attempt record. One row per
// provider, overwritten on every sync attempt so "last attempt" is always
// observable even on failure.
type SyncMetadata struct {
	Provider       Provider   `json:"provider"`
	LastSyncedAt   time.Time  `json:"lastSyncedAt"`
	LastStatus     SyncStatus `json:"lastStatus"`
	LastError      string     `json:"lastError,omitempty"`
	LastDurationMs int64      `json:"lastDurationMs"`
	RecordsAdded   int64      `json:"recordsAdded"`
}

// NowPlaying is the live Spotify playback state. It is not persisted;
// listens are only stored once they appear in recently-played.
type NowPlaying struct {
	IsPlaying   bool   `json:"isPlaying"`
	TrackID     string `json:"trackId,omitempty"`
	Name        string `json:"name,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	ExternalURL string `json:"externalUrl,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	ProgressMs  int    `json:"progressMs,omitempty"`
	DurationMs  int    `json:"durationMs,omitempty"`
}

// RepoMeta is normalized GitHub repository metadata.
type RepoMeta struct {
	FullName    string    `json:"fullName"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Stars       int       `json:"stars"`
	Forks       int       `json:"forks"`
	PushedAt    time.Time `json:"pushedAt"`
}

// ContributionDay is a single cell of the contribution calendar.
type ContributionDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Level int    `json:"level"`
}

// ContributionCalendar is the normalized GitHub contribution graph.
type ContributionCalendar struct {
	Login              string            `json:"login"`
	TotalContributions int               `json:"totalContributions"`
	Days               []ContributionDay `json:"days"`
}

// ActivityItem is a single entry of the combined activity feed.
type ActivityItem struct {
	Type       string         `json:"type"` // "commit" or "listen"
	OccurredAt time.Time      `json:"occurredAt"`
	Commit     *CommitRecord  `json:"commit,omitempty"`
	Listen     *SpotifyListen `json:"listen,omitempty"`
}
