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
	"time"

	"github.com/remcostoeten/pulse/internal/logging"
	"github.com/remcostoeten/pulse/internal/models"
	"github.com/remcostoeten/pulse/internal/sync"
)

// CommitLookup serves the live latest commit of one repository. An
// unknown repo is a 200 with a null commit and an embedded 404, so the
// widget rendering it never sees an HTTP failure.
func (h *Handler) CommitLookup(w http.ResponseWriter, r *http.Request) {
	h.recordRead()
	owner := r.URL.Query().Get("owner")
	repo := r.URL.Query().Get("repo")
	if owner == "" || repo == "" {
		respondError(w, http.StatusBadRequest, "owner and repo query parameters are required")
		return
	}

	if h.github == nil {
		respondJSON(w, http.StatusOK, tierLong, &models.CommitLookupResponse{
			Status: http.StatusServiceUnavailable,
			Error:  "GitHub integration not configured",
		})
		return
	}

	full := owner + "/" + repo
	key := "github:commits:" + full

	value, _, err := h.cache.GetOrRefresh(r.Context(), key, tierLong.policy, func(ctx context.Context) (interface{}, error) {
		commit, err := h.github.GetLatestCommit(ctx, full)
		if err != nil {
			return nil, err
		}
		return &models.CommitLookupResponse{Commit: commit, Status: http.StatusOK}, nil
	})
	if err != nil {
		if errors.Is(err, sync.ErrNotFound) {
			respondJSON(w, http.StatusOK, tierLong, &models.CommitLookupResponse{
				Status: http.StatusNotFound,
			})
			return
		}
		logging.Warn().Err(err).Str("repo", full).Msg("Commit lookup failed")
		respondJSON(w, http.StatusOK, tierLong, &models.CommitLookupResponse{
			Status: http.StatusBadGateway,
			Error:  degradeMessage(err),
		})
		return
	}

	respondJSON(w, http.StatusOK, tierLong, value)
}

// contributionRanges maps the range query parameter to a lookback
// window. The calendar is pinned to the configured account.
var contributionRanges = map[string]time.Duration{
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
	"year":  365 * 24 * time.Hour,
}

// Contributions serves the contribution calendar for the configured
// GitHub account.
func (h *Handler) Contributions(w http.ResponseWriter, r *http.Request) {
	h.recordRead()

	rangeName := r.URL.Query().Get("range")
	if rangeName == "" {
		rangeName = "year"
	}
	window, ok := contributionRanges[rangeName]
	if !ok {
		respondError(w, http.StatusBadRequest, "range must be one of week, month, year")
		return
	}

	if h.github == nil {
		respondJSON(w, http.StatusOK, tierLong, &models.ContributionsResponse{
			Error: "GitHub integration not configured",
		})
		return
	}

	key := fmt.Sprintf("github:contributions:%s", rangeName)

	value, _, err := h.cache.GetOrRefresh(r.Context(), key, tierLong.policy, func(ctx context.Context) (interface{}, error) {
		now := time.Now()
		calendar, err := h.github.GetContributionCalendar(ctx, now.Add(-window), now)
		if err != nil {
			return nil, err
		}
		return &models.ContributionsResponse{Calendar: calendar}, nil
	})
	if err != nil {
		logging.Warn().Err(err).Str("range", rangeName).Msg("Contribution lookup failed")
		respondJSON(w, http.StatusOK, tierLong, &models.ContributionsResponse{
			Error: degradeMessage(err),
		})
		return
	}

	respondJSON(w, http.StatusOK, tierLong, value)
}
