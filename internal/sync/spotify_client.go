// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/remcostoeten/pulse/internal/models"
	"github.com/remcostoeten/pulse/internal/token"
)

// DefaultSpotifyAPIURL is the Spotify Web API endpoint.
const DefaultSpotifyAPIURL = "https://api.spotify.com/v1"

// SpotifyClient fetches the live playback state and recently-played
// history.
//
// Thread Safety: safe for concurrent use.
type SpotifyClient struct {
	core    *providerCore
	baseURL string
}

// NewSpotifyClient creates a Spotify Web API client. An empty baseURL
// selects the production endpoint; tests point it at a local server.
func NewSpotifyClient(tokens *token.Cache, client *http.Client, baseURL string) *SpotifyClient {
	if baseURL == "" {
		baseURL = DefaultSpotifyAPIURL
	}
	return &SpotifyClient{
		core:    newProviderCore(models.ProviderSpotify, tokens, client),
		baseURL: baseURL,
	}
}

// spotifyTrack is the raw track object, reduced to what we keep.
type spotifyTrack struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	DurationMs   int `json:"duration_ms"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// artistNames flattens a multi-artist credit into one display string.
func (t spotifyTrack) artistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func (t spotifyTrack) imageURL() string {
	if len(t.Album.Images) == 0 {
		return ""
	}
	return t.Album.Images[0].URL
}

// GetCurrentlyPlaying returns the live playback state. Spotify answers
// 204 No Content when nothing is playing; that is a normal result, not
// an error, and comes back as IsPlaying false.
func (c *SpotifyClient) GetCurrentlyPlaying(ctx context.Context) (*models.NowPlaying, error) {
	var raw struct {
		IsPlaying  bool          `json:"is_playing"`
		ProgressMs int           `json:"progress_ms"`
		Item       *spotifyTrack `json:"item"`
	}

	status, err := c.core.getJSON(ctx, "currently_playing", c.baseURL+"/me/player/currently-playing", nil, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to get current playback: %w", err)
	}
	if status == http.StatusNoContent || raw.Item == nil {
		return &models.NowPlaying{IsPlaying: false}, nil
	}

	return &models.NowPlaying{
		IsPlaying:   raw.IsPlaying,
		TrackID:     raw.Item.ID,
		Name:        raw.Item.Name,
		Artist:      raw.Item.artistNames(),
		Album:       raw.Item.Album.Name,
		ExternalURL: raw.Item.ExternalURLs.Spotify,
		ImageURL:    raw.Item.imageURL(),
		ProgressMs:  raw.ProgressMs,
		DurationMs:  raw.Item.DurationMs,
	}, nil
}

// GetRecentlyPlayed returns finished listens, newest first. after, when
// nonzero, restricts results to plays after that time.
func (c *SpotifyClient) GetRecentlyPlayed(ctx context.Context, limit int, after time.Time) ([]models.SpotifyListen, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.UnixMilli(), 10))
	}

	var raw struct {
		Items []struct {
			Track    spotifyTrack `json:"track"`
			PlayedAt time.Time    `json:"played_at"`
		} `json:"items"`
	}

	reqURL := c.baseURL + "/me/player/recently-played?" + params.Encode()
	status, err := c.core.getJSON(ctx, "recently_played", reqURL, nil, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to get recently played: %w", err)
	}
	if status == http.StatusNoContent {
		return []models.SpotifyListen{}, nil
	}

	listens := make([]models.SpotifyListen, 0, len(raw.Items))
	for _, item := range raw.Items {
		listens = append(listens, models.SpotifyListen{
			TrackID:     item.Track.ID,
			Name:        item.Track.Name,
			Artist:      item.Track.artistNames(),
			Album:       item.Track.Album.Name,
			ExternalURL: item.Track.ExternalURLs.Spotify,
			ImageURL:    item.Track.imageURL(),
			PlayedAt:    item.PlayedAt,
		})
	}
	return listens, nil
}
