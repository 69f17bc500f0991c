// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package token

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/remcostoeten/pulse/internal/config"
)

// DefaultSpotifyTokenURL is the Spotify Accounts service token endpoint.
const DefaultSpotifyTokenURL = "https://accounts.spotify.com/api/token"

// spotifyTokenResponse is the raw token-exchange payload.
type spotifyTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"` // present only when rotated
	Scope        string `json:"scope"`
}

// NewSpotifyRefresher builds the RefreshFunc for Spotify: a refresh-token
// grant against the Accounts token endpoint using Basic client auth.
// tokenURL is overridable for tests; pass "" for the production endpoint.
func NewSpotifyRefresher(cfg config.SpotifyConfig, client *http.Client, tokenURL string) RefreshFunc {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if tokenURL == "" {
		tokenURL = DefaultSpotifyTokenURL
	}

	return func(ctx context.Context, current Token) (Token, error) {
		if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
			return Token{}, ErrConfigMissing
		}

		// A rotated refresh token supersedes the configured one.
		refreshToken := cfg.RefreshToken
		if current.RefreshToken != "" {
			refreshToken = current.RefreshToken
		}

		form := url.Values{}
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", refreshToken)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return Token{}, fmt.Errorf("failed to create token request: %w", err)
		}
		req.SetBasicAuth(cfg.ClientID, cfg.ClientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := client.Do(req)
		if err != nil {
			return Token{}, fmt.Errorf("token exchange failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return Token{}, fmt.Errorf("%w: spotify returned %d: %s", ErrRefreshFailed, resp.StatusCode, string(body))
		}

		var tr spotifyTokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return Token{}, fmt.Errorf("failed to decode token response: %w", err)
		}
		if tr.AccessToken == "" {
			return Token{}, fmt.Errorf("%w: empty access token in response", ErrRefreshFailed)
		}

		return Token{
			Value:        tr.AccessToken,
			ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
			RefreshToken: tr.RefreshToken,
		}, nil
	}
}
