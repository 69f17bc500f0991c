// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

// Package api serves the read endpoints over the activity store and the
// live provider clients, plus the sync trigger and admin surface.
//
// Read endpoints never surface integration failures as HTTP errors: a
// broken upstream degrades to an empty payload with an error string so
// the consuming UI keeps rendering. Administrative endpoints (sync
// trigger, sync status) report true status codes instead.
package api

import (
	"context"

	"github.com/remcostoeten/pulse/internal/auth"
	"github.com/remcostoeten/pulse/internal/cache"
	"github.com/remcostoeten/pulse/internal/config"
	"github.com/remcostoeten/pulse/internal/database"
	"github.com/remcostoeten/pulse/internal/models"
	"github.com/remcostoeten/pulse/internal/sync"
)

// Syncer is the sync orchestration surface the handlers need.
type Syncer interface {
	Sync(ctx context.Context, only models.Provider) *models.SyncResponse
	Status(ctx context.Context) (*models.SyncStatusResponse, error)
}

// Handler carries the dependencies shared by all endpoints.
type Handler struct {
	db      *database.DB
	github  sync.GitHubAPI
	spotify sync.SpotifyAPI
	syncer  Syncer
	cache   *cache.Cache
	jwt     *auth.JWTManager
	cfg     *config.Config

	// onRead is invoked for every read-endpoint request; the cache
	// warmer uses it as its interaction signal. May be nil.
	onRead func()
}

// NewHandler creates the endpoint handler. jwt may be nil when admin
// login is not configured; github and spotify may be nil when the
// respective integration is unconfigured.
func NewHandler(db *database.DB, github sync.GitHubAPI, spotify sync.SpotifyAPI, syncer Syncer, c *cache.Cache, jwt *auth.JWTManager, cfg *config.Config) *Handler {
	return &Handler{
		db:      db,
		github:  github,
		spotify: spotify,
		syncer:  syncer,
		cache:   c,
		jwt:     jwt,
		cfg:     cfg,
	}
}

// SetReadHook registers a callback fired on every read-endpoint request.
func (h *Handler) SetReadHook(fn func()) {
	h.onRead = fn
}

func (h *Handler) recordRead() {
	if h.onRead != nil {
		h.onRead()
	}
}
