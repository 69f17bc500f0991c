// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// Health reports overall service health including store reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, tierNone, healthResponse{
		Status: status,
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthLive is the liveness probe; it answers as long as the process
// serves requests.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, tierNone, healthResponse{
		Status: "alive",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthReady is the readiness probe; it fails while the store is
// unreachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database not ready")
		return
	}
	respondJSON(w, http.StatusOK, tierNone, healthResponse{
		Status: "ready",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
