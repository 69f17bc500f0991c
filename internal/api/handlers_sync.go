// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/remcostoeten/pulse/internal/logging"
	"github.com/remcostoeten/pulse/internal/models"
)

// authorizeAdmin accepts either the machine cron secret or a valid
// admin session token.
func (h *Handler) authorizeAdmin(r *http.Request) bool {
	if secret := r.Header.Get("X-Cron-Secret"); secret != "" && h.cfg.Security.CronSecret != "" {
		if subtle.ConstantTimeCompare([]byte(secret), []byte(h.cfg.Security.CronSecret)) == 1 {
			return true
		}
	}

	if h.jwt != nil {
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			if _, err := h.jwt.ValidateToken(token); err == nil {
				return true
			}
		}
	}
	return false
}

// TriggerSync runs a sync on demand. The optional service parameter
// restricts the run to one provider.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAdmin(r) {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var only models.Provider
	if service := r.URL.Query().Get("service"); service != "" {
		only = models.Provider(service)
		if !only.Valid() {
			respondError(w, http.StatusBadRequest, "service must be github or spotify")
			return
		}
	}

	if !h.cfg.GitHub.Configured() && !h.cfg.Spotify.Configured() {
		respondError(w, http.StatusServiceUnavailable, "no providers configured")
		return
	}

	logging.Info().Str("service", string(only)).Msg("Manual sync triggered")
	resp := h.syncer.Sync(r.Context(), only)
	respondJSON(w, http.StatusOK, tierNone, resp)
}

// SyncStatus serves the stored per-provider last-attempt metadata. This
// is an administrative view: store failures are true 5xx responses.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeAdmin(r) {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	status, err := h.syncer.Status(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Sync status lookup failed")
		respondError(w, http.StatusInternalServerError, "failed to read sync metadata")
		return
	}
	if status.Providers == nil {
		status.Providers = []models.SyncMetadata{}
	}
	respondJSON(w, http.StatusOK, tierNone, status)
}
