// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package models

import "time"

// APIError is the structured error payload attached to degraded or failed
// responses. Client-facing read endpoints carry it inside a 200 body so the
// UI never breaks on transient integration issues.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GitHubActivityResponse is the payload of GET /activity/github.
type GitHubActivityResponse struct {
	Commits      []CommitRecord `json:"commits"`
	LastSyncedAt *time.Time     `json:"lastSyncedAt,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// NowPlayingResponse is the payload of GET /activity/spotify/current.
// When the integration is not configured, IsPlaying is false and Message
// explains why; the HTTP status stays 200.
type NowPlayingResponse struct {
	NowPlaying
	Message string `json:"message,omitempty"`
}

// RecentTracksResponse is the payload of GET /activity/spotify/recent.
type RecentTracksResponse struct {
	Tracks []SpotifyListen `json:"tracks"`
	Error  string          `json:"error,omitempty"`
}

// CombinedActivityResponse is the payload of GET /activity/combined.
// Activities is never null: a total failure degrades to an empty slice
// plus a descriptive error.
type CombinedActivityResponse struct {
	Activities []ActivityItem `json:"activities"`
	Error      string         `json:"error,omitempty"`
}

// CommitLookupResponse is the payload of GET /github/commits. A repo that
// does not exist upstream is reported as Status 404 with a null commit,
// not as an HTTP failure.
type CommitLookupResponse struct {
	Commit *CommitRecord `json:"commit"`
	Status int           `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// ContributionsResponse is the payload of GET /github/contributions.
type ContributionsResponse struct {
	Calendar *ContributionCalendar `json:"calendar"`
	Error    string                `json:"error,omitempty"`
}

// ProviderSyncOutcome is the per-provider section of a sync trigger
// response.
type ProviderSyncOutcome struct {
	Status     string `json:"status"`
	NewRecords int    `json:"newRecords"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// SyncResponse is the payload of POST /sync.
type SyncResponse struct {
	Success  bool                 `json:"success"`
	Status   string               `json:"status"`
	Duration int64                `json:"duration"`
	GitHub   *ProviderSyncOutcome `json:"github,omitempty"`
	Spotify  *ProviderSyncOutcome `json:"spotify,omitempty"`
}

// SyncStatusResponse is the payload of GET /sync/status.
type SyncStatusResponse struct {
	Providers []SyncMetadata `json:"providers"`
}

// LoginResponse is the payload of POST /auth/login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
