// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/remcostoeten/pulse/internal/logging"
	"github.com/remcostoeten/pulse/internal/models"
	"github.com/remcostoeten/pulse/internal/sync"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// degradeMessage maps an integration error to a stable client-facing
// string. Raw upstream error text never reaches the response body.
func degradeMessage(err error) string {
	switch {
	case sync.IsRateLimited(err):
		return "Provider rate limit reached"
	case errors.Is(err, sync.ErrTimeout):
		return "Upstream request timed out"
	case errors.Is(err, sync.ErrAuthenticationFailed):
		return "Provider authentication failed"
	case errors.Is(err, sync.ErrUpstreamUnavailable):
		return "Upstream temporarily unavailable"
	default:
		return "Temporarily unavailable"
	}
}

// GitHubActivity serves recent stored commits plus the last-sync
// timestamp. Store errors degrade to an empty commit list.
func (h *Handler) GitHubActivity(w http.ResponseWriter, r *http.Request) {
	h.recordRead()
	ctx := r.Context()
	limit := intQuery(r, "limit", defaultActivityLimit, 1, maxActivityLimit)
	key := fmt.Sprintf("activity:github:%d", limit)

	value, _, err := h.cache.GetOrRefresh(ctx, key, tierMedium.policy, func(ctx context.Context) (interface{}, error) {
		commits, err := h.db.GetRecentCommits(ctx, limit)
		if err != nil {
			return nil, err
		}
		resp := &models.GitHubActivityResponse{Commits: commits}
		if resp.Commits == nil {
			resp.Commits = []models.CommitRecord{}
		}
		if meta, err := h.db.GetSyncMetadata(ctx, models.ProviderGitHub); err == nil {
			resp.LastSyncedAt = &meta.LastSyncedAt
		}
		return resp, nil
	})
	if err != nil {
		logging.Error().Err(err).Msg("GitHub activity lookup failed")
		respondJSON(w, http.StatusOK, tierMedium, &models.GitHubActivityResponse{
			Commits: []models.CommitRecord{},
			Error:   degradeMessage(err),
		})
		return
	}

	respondJSON(w, http.StatusOK, tierMedium, value)
}

// SpotifyCurrent serves the live now-playing state through the
// short-lived cache. An unconfigured integration is a normal answer,
// not an error.
func (h *Handler) SpotifyCurrent(w http.ResponseWriter, r *http.Request) {
	h.recordRead()

	if h.spotify == nil || !h.cfg.Spotify.Configured() {
		respondJSON(w, http.StatusOK, tierRealtime, &models.NowPlayingResponse{
			Message: "No refresh token configured",
		})
		return
	}

	value, _, err := h.cache.GetOrRefresh(r.Context(), "activity:spotify:current", tierRealtime.policy, func(ctx context.Context) (interface{}, error) {
		playing, err := h.spotify.GetCurrentlyPlaying(ctx)
		if err != nil {
			return nil, err
		}
		return &models.NowPlayingResponse{NowPlaying: *playing}, nil
	})
	if err != nil {
		logging.Warn().Err(err).Msg("Now-playing lookup failed")
		respondJSON(w, http.StatusOK, tierRealtime, &models.NowPlayingResponse{
			Message: degradeMessage(err),
		})
		return
	}

	respondJSON(w, http.StatusOK, tierRealtime, value)
}

// SpotifyRecent serves stored listens, newest first.
func (h *Handler) SpotifyRecent(w http.ResponseWriter, r *http.Request) {
	h.recordRead()
	limit := intQuery(r, "limit", defaultActivityLimit, 1, maxActivityLimit)
	key := fmt.Sprintf("activity:spotify:recent:%d", limit)

	value, _, err := h.cache.GetOrRefresh(r.Context(), key, tierMedium.policy, func(ctx context.Context) (interface{}, error) {
		listens, err := h.db.GetRecentListens(ctx, limit)
		if err != nil {
			return nil, err
		}
		if listens == nil {
			listens = []models.SpotifyListen{}
		}
		return &models.RecentTracksResponse{Tracks: listens}, nil
	})
	if err != nil {
		logging.Error().Err(err).Msg("Recent listens lookup failed")
		respondJSON(w, http.StatusOK, tierMedium, &models.RecentTracksResponse{
			Tracks: []models.SpotifyListen{},
			Error:  degradeMessage(err),
		})
		return
	}

	respondJSON(w, http.StatusOK, tierMedium, value)
}

// CombinedActivity serves the merged commit and listen feed. Activities
// is never null: a store failure degrades to an empty feed with an
// error string.
func (h *Handler) CombinedActivity(w http.ResponseWriter, r *http.Request) {
	h.recordRead()
	activityLimit := intQuery(r, "activityLimit", defaultActivityLimit, 1, maxActivityLimit)
	tracksLimit := intQuery(r, "tracksLimit", defaultActivityLimit, 1, maxActivityLimit)
	key := fmt.Sprintf("activity:combined:%d:%d", activityLimit, tracksLimit)

	value, _, err := h.cache.GetOrRefresh(r.Context(), key, tierMedium.policy, func(ctx context.Context) (interface{}, error) {
		items, err := h.db.GetCombinedActivity(ctx, activityLimit, tracksLimit)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []models.ActivityItem{}
		}
		return &models.CombinedActivityResponse{Activities: items}, nil
	})
	if err != nil {
		logging.Error().Err(err).Msg("Combined activity lookup failed")
		respondJSON(w, http.StatusOK, tierMedium, &models.CombinedActivityResponse{
			Activities: []models.ActivityItem{},
			Error:      degradeMessage(err),
		})
		return
	}

	respondJSON(w, http.StatusOK, tierMedium, value)
}
