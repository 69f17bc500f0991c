// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/remcostoeten/pulse/internal/cache"
	"github.com/remcostoeten/pulse/internal/logging"
)

// cacheTier couples an HTTP Cache-Control header with the matching
// server-side freshness policy, so browsers, CDNs and the in-process
// cache age entries on the same schedule.
type cacheTier struct {
	header string
	policy cache.Policy
}

var (
	// tierRealtime is for live state that goes stale in seconds.
	tierRealtime = cacheTier{
		header: "public, max-age=30, stale-while-revalidate=60",
		policy: cache.Policy{Freshness: 30 * time.Second, StaleWindow: 60 * time.Second},
	}
	// tierMedium is for stored activity that changes per sync run.
	tierMedium = cacheTier{
		header: "public, max-age=120, stale-while-revalidate=300",
		policy: cache.Policy{Freshness: 2 * time.Minute, StaleWindow: 5 * time.Minute},
	}
	// tierLong is for slow-moving data like contribution calendars.
	tierLong = cacheTier{
		header: "public, max-age=3600, stale-while-revalidate=7200",
		policy: cache.Policy{Freshness: time.Hour, StaleWindow: 2 * time.Hour},
	}
	// tierNone disables HTTP caching; used for auth and admin responses.
	tierNone = cacheTier{header: "no-store"}
)

// respondJSON writes a JSON body with the tier's cache headers and an
// ETag over the serialized payload.
func respondJSON(w http.ResponseWriter, status int, tier cacheTier, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", tier.header)
	w.Header().Set("Vary", "Accept-Encoding")
	w.Header().Set("ETag", generateETag(data))

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// generateETag hashes the body with FNV-1a. Weak but cheap; the tag only
// needs to change when the body does.
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return `"` + strconv.FormatUint(uint64(hash), 16) + `"`
}

type errorBody struct {
	Error string `json:"error"`
}

// respondError writes a plain error body with a true HTTP status. Only
// administrative endpoints use this; read endpoints degrade instead.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, tierNone, errorBody{Error: message})
}

// intQuery parses a bounded integer query parameter, falling back to
// def when absent or unparseable.
func intQuery(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
