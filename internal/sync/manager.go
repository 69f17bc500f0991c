// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

// Package sync pulls activity from the external providers, normalizes
// it, and lands it in the store. One Manager run fans out to every
// configured provider concurrently; a provider failing, timing out, or
// being unconfigured never blocks the others.
package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/remcostoeten/pulse/internal/config"
	"github.com/remcostoeten/pulse/internal/database"
	"github.com/remcostoeten/pulse/internal/events"
	"github.com/remcostoeten/pulse/internal/logging"
	"github.com/remcostoeten/pulse/internal/metrics"
	"github.com/remcostoeten/pulse/internal/models"
)

// Terminal statuses of one orchestrator run.
const (
	StatusSucceeded       = "succeeded"
	StatusPartiallyFailed = "partially_failed"
	StatusFailed          = "failed"
	StatusTimeout         = "timeout"
)

// Per-provider outcome statuses.
const (
	outcomeSuccess       = "success"
	outcomeFailure       = "failure"
	outcomeNotConfigured = "not_configured"
)

// Manager orchestrates sync runs across providers.
//
// Thread Safety: safe for concurrent use; concurrent SyncAll calls are
// serialized so two runs never interleave writes.
type Manager struct {
	db      *database.DB
	github  GitHubAPI
	spotify SpotifyAPI
	bus     *events.Bus

	githubCfg  config.GitHubConfig
	spotifyCfg config.SpotifyConfig
	syncCfg    config.SyncConfig

	syncMu gosync.Mutex
	now    func() time.Time
}

// NewManager creates a sync orchestrator. bus may be nil when no one
// listens for sync events (tests).
func NewManager(db *database.DB, github GitHubAPI, spotify SpotifyAPI, cfg *config.Config, bus *events.Bus) *Manager {
	return &Manager{
		db:         db,
		github:     github,
		spotify:    spotify,
		bus:        bus,
		githubCfg:  cfg.GitHub,
		spotifyCfg: cfg.Spotify,
		syncCfg:    cfg.Sync,
		now:        time.Now,
	}
}

// SyncAll runs one full sync across all providers. The run is bounded
// by the configured timeout; a provider that cannot finish in time is
// recorded as a failure without sinking the rest. The response is
// always non-nil and describes every provider's outcome.
func (m *Manager) SyncAll(ctx context.Context) *models.SyncResponse {
	return m.Sync(ctx, "")
}

// Sync runs one sync, optionally restricted to a single provider. An
// empty filter syncs everything.
func (m *Manager) Sync(ctx context.Context, only models.Provider) *models.SyncResponse {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	start := m.now()
	ctx, cancel := context.WithTimeout(ctx, m.syncCfg.Timeout)
	defer cancel()

	var (
		githubOutcome  *models.ProviderSyncOutcome
		spotifyOutcome *models.ProviderSyncOutcome
	)

	// Providers are independent; errors stay inside each goroutine so
	// the group itself never aborts early.
	g, gctx := errgroup.WithContext(ctx)
	if only == "" || only == models.ProviderGitHub {
		g.Go(func() error {
			githubOutcome = m.syncGitHub(gctx)
			return nil
		})
	}
	if only == "" || only == models.ProviderSpotify {
		g.Go(func() error {
			spotifyOutcome = m.syncSpotify(gctx)
			return nil
		})
	}
	_ = g.Wait()

	resp := &models.SyncResponse{
		GitHub:   githubOutcome,
		Spotify:  spotifyOutcome,
		Duration: m.now().Sub(start).Milliseconds(),
	}
	resp.Status = terminalStatus(ctx, githubOutcome, spotifyOutcome)
	resp.Success = resp.Status == StatusSucceeded

	metrics.SyncRuns.WithLabelValues(resp.Status).Inc()
	logging.Info().
		Str("status", resp.Status).
		Int64("duration_ms", resp.Duration).
		Msg("Sync run finished")

	m.publishIfChanged(resp)
	return resp
}

// Status reports the stored last-attempt metadata for every provider.
func (m *Manager) Status(ctx context.Context) (*models.SyncStatusResponse, error) {
	providers, err := m.db.GetAllSyncMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return &models.SyncStatusResponse{Providers: providers}, nil
}

// syncGitHub pulls recent commits for every tracked repo.
func (m *Manager) syncGitHub(ctx context.Context) *models.ProviderSyncOutcome {
	if !m.githubCfg.Configured() {
		return &models.ProviderSyncOutcome{Status: outcomeNotConfigured}
	}

	start := m.now()
	since := start.Add(-m.syncCfg.Lookback)

	var (
		newRecords int64
		firstErr   error
	)
	for _, repo := range m.githubCfg.Repos {
		commits, err := m.github.ListRecentCommits(ctx, repo, since, 100)
		if err != nil {
			logging.Warn().Err(err).Str("repo", repo).Msg("Commit fetch failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		inserted, err := m.db.InsertCommits(ctx, commits)
		if err != nil {
			logging.Error().Err(err).Str("repo", repo).Msg("Commit insert failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		newRecords += inserted
	}

	return m.finishProvider(ctx, models.ProviderGitHub, start, newRecords, firstErr)
}

// syncSpotify pulls the recently-played feed. The live now-playing
// state is deliberately not persisted here; only finished listens reach
// the store.
func (m *Manager) syncSpotify(ctx context.Context) *models.ProviderSyncOutcome {
	if !m.spotifyCfg.Configured() {
		return &models.ProviderSyncOutcome{Status: outcomeNotConfigured}
	}

	start := m.now()
	after := start.Add(-m.syncCfg.Lookback)

	var newRecords int64
	listens, err := m.spotify.GetRecentlyPlayed(ctx, m.syncCfg.RecentLimit, after)
	if err == nil {
		newRecords, err = m.db.InsertListens(ctx, listens)
	}
	return m.finishProvider(ctx, models.ProviderSpotify, start, newRecords, err)
}

// finishProvider writes the metadata row and builds the outcome. The
// row is written on every attempt, success or not, so the last attempt
// is always observable.
func (m *Manager) finishProvider(ctx context.Context, provider models.Provider, start time.Time, newRecords int64, syncErr error) *models.ProviderSyncOutcome {
	duration := m.now().Sub(start)

	meta := models.SyncMetadata{
		Provider:       provider,
		LastSyncedAt:   start,
		LastStatus:     models.SyncStatusSuccess,
		LastDurationMs: duration.Milliseconds(),
		RecordsAdded:   newRecords,
	}
	outcome := &models.ProviderSyncOutcome{
		Status:     outcomeSuccess,
		NewRecords: int(newRecords),
		DurationMs: duration.Milliseconds(),
	}

	if syncErr != nil {
		meta.LastStatus = models.SyncStatusFailure
		meta.LastError = syncErr.Error()
		outcome.Status = outcomeFailure
		outcome.Error = syncErr.Error()
	}

	// Metadata writes must survive a run that timed out; use a short
	// independent deadline instead of the possibly-exhausted run context.
	metaCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.db.UpsertSyncMetadata(metaCtx, meta); err != nil {
		logging.Error().Err(err).Str("provider", string(provider)).Msg("Failed to record sync metadata")
	}

	metrics.SyncProviderOutcomes.WithLabelValues(string(provider), outcome.Status).Inc()
	metrics.SyncNewRecords.WithLabelValues(string(provider)).Add(float64(newRecords))
	metrics.SyncDuration.WithLabelValues(string(provider)).Observe(duration.Seconds())
	return outcome
}

// terminalStatus folds per-provider outcomes into the run status.
// Unconfigured or filtered-out providers count as neither success nor
// failure; a run with nothing configured still reports succeeded (it
// did all the work there was).
func terminalStatus(ctx context.Context, outcomes ...*models.ProviderSyncOutcome) string {
	var succeeded, failed int
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		switch o.Status {
		case outcomeSuccess:
			succeeded++
		case outcomeFailure:
			failed++
		}
	}

	if failed > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return StatusTimeout
	}
	switch {
	case failed == 0:
		return StatusSucceeded
	case succeeded > 0:
		return StatusPartiallyFailed
	default:
		return StatusFailed
	}
}

// publishIfChanged emits an activity.synced event when the run landed
// new rows, so caches drop their derived views.
func (m *Manager) publishIfChanged(resp *models.SyncResponse) {
	if m.bus == nil {
		return
	}

	var providers []models.Provider
	var total int64
	if resp.GitHub != nil && resp.GitHub.NewRecords > 0 {
		providers = append(providers, models.ProviderGitHub)
		total += int64(resp.GitHub.NewRecords)
	}
	if resp.Spotify != nil && resp.Spotify.NewRecords > 0 {
		providers = append(providers, models.ProviderSpotify)
		total += int64(resp.Spotify.NewRecords)
	}
	if total == 0 {
		return
	}

	if err := m.bus.PublishActivitySynced(events.ActivitySyncedEvent{
		Providers:  providers,
		NewRecords: total,
		SyncedAt:   m.now(),
	}); err != nil {
		logging.Warn().Err(err).Msg("Failed to publish sync event")
	}
}
