// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remcostoeten/pulse/internal/config"
	"github.com/remcostoeten/pulse/internal/database"
	"github.com/remcostoeten/pulse/internal/events"
	"github.com/remcostoeten/pulse/internal/models"
)

type fakeGitHub struct {
	commits []models.CommitRecord
	err     error
	calls   int
}

func (f *fakeGitHub) ListRecentCommits(_ context.Context, repo string, _ time.Time, _ int) ([]models.CommitRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.CommitRecord, 0, len(f.commits))
	for _, c := range f.commits {
		if c.RepoFullName == repo {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeGitHub) GetLatestCommit(ctx context.Context, repo string) (*models.CommitRecord, error) {
	commits, err := f.ListRecentCommits(ctx, repo, time.Time{}, 1)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, ErrNotFound
	}
	return &commits[0], nil
}

func (f *fakeGitHub) GetRepoMeta(context.Context, string) (*models.RepoMeta, error) {
	return &models.RepoMeta{}, nil
}

func (f *fakeGitHub) GetContributionCalendar(context.Context, time.Time, time.Time) (*models.ContributionCalendar, error) {
	return &models.ContributionCalendar{}, nil
}

type fakeSpotify struct {
	listens []models.SpotifyListen
	err     error
}

func (f *fakeSpotify) GetCurrentlyPlaying(context.Context) (*models.NowPlaying, error) {
	return &models.NowPlaying{IsPlaying: false}, nil
}

func (f *fakeSpotify) GetRecentlyPlayed(context.Context, int, time.Time) ([]models.SpotifyListen, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.listens, nil
}

func testManagerConfig() *config.Config {
	return &config.Config{
		GitHub: config.GitHubConfig{
			Token: "ghp_test",
			Login: "remcostoeten",
			Repos: []string{"remcostoeten/pulse"},
		},
		Spotify: config.SpotifyConfig{
			ClientID:     "cid",
			ClientSecret: "cs",
			RefreshToken: "rt",
		},
		Sync: config.SyncConfig{
			Lookback:    24 * time.Hour,
			Timeout:     30 * time.Second,
			RecentLimit: 50,
		},
	}
}

func newTestManager(t *testing.T, github GitHubAPI, spotify SpotifyAPI, cfg *config.Config, bus *events.Bus) *Manager {
	t.Helper()
	db, err := database.New(config.DatabaseConfig{Path: ":memory:", MaxMemory: "1GB"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewManager(db, github, spotify, cfg, bus)
}

func TestSyncAllBothProvidersSucceed(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	github := &fakeGitHub{commits: []models.CommitRecord{
		{Hash: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", ShortHash: "aaaaaaa", Message: "m", RepoFullName: "remcostoeten/pulse", CommittedAt: now},
	}}
	spotify := &fakeSpotify{listens: []models.SpotifyListen{
		{TrackID: "t1", Name: "Song", PlayedAt: now},
	}}

	m := newTestManager(t, github, spotify, testManagerConfig(), nil)
	resp := m.SyncAll(context.Background())

	assert.True(t, resp.Success)
	assert.Equal(t, StatusSucceeded, resp.Status)
	require.NotNil(t, resp.GitHub)
	assert.Equal(t, 1, resp.GitHub.NewRecords)
	require.NotNil(t, resp.Spotify)
	assert.Equal(t, 1, resp.Spotify.NewRecords)

	status, err := m.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, status.Providers, 2)
	for _, p := range status.Providers {
		assert.Equal(t, models.SyncStatusSuccess, p.LastStatus)
	}
}

func TestSyncAllRerunAddsNothing(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	github := &fakeGitHub{commits: []models.CommitRecord{
		{Hash: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", ShortHash: "aaaaaaa", Message: "m", RepoFullName: "remcostoeten/pulse", CommittedAt: now},
	}}
	spotify := &fakeSpotify{listens: []models.SpotifyListen{
		{TrackID: "t1", Name: "Song", PlayedAt: now},
	}}

	m := newTestManager(t, github, spotify, testManagerConfig(), nil)
	first := m.SyncAll(context.Background())
	require.Equal(t, 1, first.GitHub.NewRecords)

	second := m.SyncAll(context.Background())
	assert.True(t, second.Success)
	assert.Equal(t, 0, second.GitHub.NewRecords, "overlapping fetches must be idempotent")
	assert.Equal(t, 0, second.Spotify.NewRecords)
}

func TestSyncAllPartialFailure(t *testing.T) {
	now := time.Now().UTC()
	github := &fakeGitHub{err: ErrUpstreamUnavailable}
	spotify := &fakeSpotify{listens: []models.SpotifyListen{{TrackID: "t1", Name: "Song", PlayedAt: now}}}

	m := newTestManager(t, github, spotify, testManagerConfig(), nil)
	resp := m.SyncAll(context.Background())

	assert.False(t, resp.Success)
	assert.Equal(t, StatusPartiallyFailed, resp.Status)
	assert.Equal(t, "failure", resp.GitHub.Status)
	assert.NotEmpty(t, resp.GitHub.Error)
	assert.Equal(t, "success", resp.Spotify.Status)

	// The failed attempt is still recorded.
	status, err := m.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, status.Providers, 2)
	assert.Equal(t, models.SyncStatusFailure, status.Providers[0].LastStatus)
	assert.NotEmpty(t, status.Providers[0].LastError)
}

func TestSyncAllBothFail(t *testing.T) {
	github := &fakeGitHub{err: ErrUpstreamUnavailable}
	spotify := &fakeSpotify{err: ErrUpstreamUnavailable}

	m := newTestManager(t, github, spotify, testManagerConfig(), nil)
	resp := m.SyncAll(context.Background())

	assert.Equal(t, StatusFailed, resp.Status)
}

func TestSyncAllUnconfiguredProvidersSkipped(t *testing.T) {
	cfg := testManagerConfig()
	cfg.GitHub = config.GitHubConfig{}
	cfg.Spotify = config.SpotifyConfig{}

	m := newTestManager(t, &fakeGitHub{}, &fakeSpotify{}, cfg, nil)
	resp := m.SyncAll(context.Background())

	assert.True(t, resp.Success, "nothing configured still counts as a clean run")
	assert.Equal(t, "not_configured", resp.GitHub.Status)
	assert.Equal(t, "not_configured", resp.Spotify.Status)

	status, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.Empty(t, status.Providers, "skipped providers write no metadata")
}

func TestSyncAllPublishesEventOnNewRecords(t *testing.T) {
	now := time.Now().UTC()
	github := &fakeGitHub{commits: []models.CommitRecord{
		{Hash: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", ShortHash: "aaaaaaa", Message: "m", RepoFullName: "remcostoeten/pulse", CommittedAt: now},
	}}

	bus := events.NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan events.ActivitySyncedEvent, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.SubscribeActivitySynced(ctx, func(e events.ActivitySyncedEvent) {
		received <- e
	}))

	cfg := testManagerConfig()
	cfg.Spotify = config.SpotifyConfig{} // only GitHub contributes
	m := newTestManager(t, github, &fakeSpotify{}, cfg, bus)

	resp := m.SyncAll(context.Background())
	require.True(t, resp.Success)

	select {
	case e := <-received:
		assert.Equal(t, []models.Provider{models.ProviderGitHub}, e.Providers)
		assert.Equal(t, int64(1), e.NewRecords)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a sync event")
	}

	// A run that adds nothing stays silent.
	resp = m.SyncAll(context.Background())
	require.Equal(t, 0, resp.GitHub.NewRecords)
	select {
	case <-received:
		t.Fatal("no-op run must not publish")
	case <-time.After(100 * time.Millisecond):
	}
}
