// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

// Command server runs the Pulse daemon: the sync scheduler, the
// now-playing cache warmer and the read API, supervised as one tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/remcostoeten/pulse/internal/api"
	"github.com/remcostoeten/pulse/internal/auth"
	"github.com/remcostoeten/pulse/internal/cache"
	"github.com/remcostoeten/pulse/internal/config"
	"github.com/remcostoeten/pulse/internal/database"
	"github.com/remcostoeten/pulse/internal/events"
	"github.com/remcostoeten/pulse/internal/logging"
	"github.com/remcostoeten/pulse/internal/models"
	"github.com/remcostoeten/pulse/internal/supervisor"
	"github.com/remcostoeten/pulse/internal/sync"
	"github.com/remcostoeten/pulse/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Bool("github", cfg.GitHub.Configured()).
		Bool("spotify", cfg.Spotify.Configured()).
		Msg("Starting Pulse")

	db, err := database.New(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Database close failed")
		}
	}()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	tokens := token.NewCache()

	// Unconfigured integrations stay nil; every consumer downstream
	// treats a nil client as "not configured" rather than an error.
	var github sync.GitHubAPI
	if cfg.GitHub.Configured() {
		tokens.Register(models.ProviderGitHub, token.NewGitHubStatic(cfg.GitHub))
		github = sync.NewGitHubBreakerClient(sync.NewGitHubClient(cfg.GitHub.Login, tokens, httpClient, "", ""))
	}
	var spotify sync.SpotifyAPI
	if cfg.Spotify.Configured() {
		tokens.Register(models.ProviderSpotify, token.NewSpotifyRefresher(cfg.Spotify, httpClient, ""))
		spotify = sync.NewSpotifyBreakerClient(sync.NewSpotifyClient(tokens, httpClient, ""))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Warn().Err(err).Msg("Event bus close failed")
		}
	}()

	manager := sync.NewManager(db, github, spotify, cfg, bus)

	// Sync runs that landed new rows drop the derived read views.
	appCache := cache.New()
	if err := bus.SubscribeActivitySynced(ctx, func(event events.ActivitySyncedEvent) {
		dropped := appCache.InvalidatePrefix("activity:")
		logging.Debug().
			Int64("new_records", event.NewRecords).
			Int("entries_dropped", dropped).
			Msg("Invalidated activity caches after sync")
	}); err != nil {
		logging.Fatal().Err(err).Msg("Failed to subscribe to sync events")
	}

	var jwtManager *auth.JWTManager
	if cfg.Security.JWTSecret != "" {
		jwtManager, err = auth.NewJWTManager(cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Invalid JWT configuration")
		}
	}

	handler := api.NewHandler(db, github, spotify, manager, appCache, jwtManager, cfg)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(sync.NewScheduler(manager, cfg.Sync.Interval))

	if spotify != nil {
		warmer := api.NewNowPlayingWarmer(spotify, appCache)
		handler.SetReadHook(warmer.RecordInteraction)
		tree.AddSyncService(warmer)
		logging.Info().Msg("Now-playing cache warmer enabled")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg).Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server registered")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop in time")
		}
	}

	logging.Info().Msg("Stopped")
}
