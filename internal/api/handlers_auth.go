// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/remcostoeten/pulse/internal/auth"
	"github.com/remcostoeten/pulse/internal/logging"
	"github.com/remcostoeten/pulse/internal/models"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges admin credentials for a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.jwt == nil || !h.cfg.Security.AdminLoginEnabled() {
		respondError(w, http.StatusServiceUnavailable, "admin login is not configured")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := auth.VerifyCredentials(h.cfg.Security, req.Username, req.Password); err != nil {
		logging.Warn().Str("username", req.Username).Msg("Failed login attempt")
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := h.jwt.GenerateToken(req.Username)
	if err != nil {
		logging.Error().Err(err).Msg("Token generation failed")
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, tierNone, &models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
