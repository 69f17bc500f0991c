// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSpotifyTestClient(t *testing.T, handler http.Handler) *SpotifyClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var refreshes int32
	cache := newTestTokenCache(t, &refreshes)
	client := NewSpotifyClient(cache, srv.Client(), srv.URL)
	client.core.retryBaseDelay = time.Millisecond
	return client
}

func TestGetCurrentlyPlayingNothingPlaying(t *testing.T) {
	client := newSpotifyTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/player/currently-playing", r.URL.Path)
		// Spotify answers 204 with an empty body when playback is idle.
		w.WriteHeader(http.StatusNoContent)
	}))

	np, err := client.GetCurrentlyPlaying(context.Background())
	require.NoError(t, err)
	assert.False(t, np.IsPlaying)
	assert.Empty(t, np.TrackID)
}

func TestGetCurrentlyPlayingJoinsArtists(t *testing.T) {
	client := newSpotifyTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"is_playing": true,
			"progress_ms": 63000,
			"item": {
				"id": "track-1",
				"name": "Midnight City",
				"duration_ms": 243000,
				"artists": [{"name": "M83"}, {"name": "Someone Else"}],
				"album": {
					"name": "Hurry Up, We're Dreaming",
					"images": [{"url": "https://i.scdn.co/image/large"}, {"url": "https://i.scdn.co/image/small"}]
				},
				"external_urls": {"spotify": "https://open.spotify.com/track/track-1"}
			}
		}`))
	}))

	np, err := client.GetCurrentlyPlaying(context.Background())
	require.NoError(t, err)
	assert.True(t, np.IsPlaying)
	assert.Equal(t, "M83, Someone Else", np.Artist)
	assert.Equal(t, "https://i.scdn.co/image/large", np.ImageURL)
	assert.Equal(t, 63000, np.ProgressMs)
	assert.Equal(t, 243000, np.DurationMs)
}

func TestGetRecentlyPlayed(t *testing.T) {
	client := newSpotifyTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/player/recently-played", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.NotEmpty(t, r.URL.Query().Get("after"))
		_, _ = w.Write([]byte(`{
			"items": [
				{
					"played_at": "2026-08-31T18:30:00Z",
					"track": {
						"id": "track-2",
						"name": "Recent Song",
						"artists": [{"name": "Artist"}],
						"album": {"name": "Album", "images": []},
						"external_urls": {"spotify": "https://open.spotify.com/track/track-2"}
					}
				}
			]
		}`))
	}))

	listens, err := client.GetRecentlyPlayed(context.Background(), 2, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, listens, 1)
	assert.Equal(t, "track-2", listens[0].TrackID)
	assert.Equal(t, "Recent Song", listens[0].Name)
	assert.Empty(t, listens[0].ImageURL, "missing album art must not panic")
	assert.Equal(t, time.Date(2026, 8, 31, 18, 30, 0, 0, time.UTC), listens[0].PlayedAt.UTC())
}

func TestGetRecentlyPlayedClampsLimit(t *testing.T) {
	var gotLimit string
	client := newSpotifyTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`{"items": []}`))
	}))

	listens, err := client.GetRecentlyPlayed(context.Background(), 500, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, listens)
	assert.Equal(t, "50", gotLimit, "Spotify caps the page size at 50")
}

func TestSpotifyRequestTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	var hit int32
	client := newSpotifyTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hit, 1)
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GetCurrentlyPlaying(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hit))
}
