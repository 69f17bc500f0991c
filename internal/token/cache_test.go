// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remcostoeten/pulse/internal/config"
	"github.com/remcostoeten/pulse/internal/models"
)

func TestGetAccessTokenNotConfigured(t *testing.T) {
	c := NewCache()

	_, err := c.GetAccessToken(context.Background(), models.ProviderSpotify)
	assert.ErrorIs(t, err, ErrConfigMissing)
}

func TestGetAccessTokenCachesUntilExpiry(t *testing.T) {
	var calls int32
	c := NewCache()
	now := time.Now()
	c.SetClock(func() time.Time { return now })
	c.Register(models.ProviderSpotify, func(_ context.Context, _ Token) (Token, error) {
		atomic.AddInt32(&calls, 1)
		return Token{Value: "tok-1", ExpiresAt: now.Add(time.Hour)}, nil
	})

	for i := 0; i < 5; i++ {
		tok, err := c.GetAccessToken(context.Background(), models.ProviderSpotify)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetAccessTokenRefreshesInsideSafetyMargin(t *testing.T) {
	var calls int32
	c := NewCache()
	now := time.Now()
	c.SetClock(func() time.Time { return now })
	c.Register(models.ProviderSpotify, func(_ context.Context, _ Token) (Token, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			// Expires 30s from now: inside the 60s safety margin on the
			// second read.
			return Token{Value: "tok-1", ExpiresAt: now.Add(30 * time.Second)}, nil
		}
		return Token{Value: "tok-2", ExpiresAt: now.Add(time.Hour)}, nil
	})

	tok, err := c.GetAccessToken(context.Background(), models.ProviderSpotify)
	require.NoError(t, err)
	// First call stores a token already inside the margin, so the refresh
	// result is returned as-is.
	assert.Equal(t, "tok-1", tok)

	tok, err = c.GetAccessToken(context.Background(), models.ProviderSpotify)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetAccessTokenSingleFlight(t *testing.T) {
	var exchanges int32
	release := make(chan struct{})
	c := NewCache()
	c.Register(models.ProviderSpotify, func(_ context.Context, _ Token) (Token, error) {
		atomic.AddInt32(&exchanges, 1)
		<-release
		return Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})

	const callers = 16
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetAccessToken(context.Background(), models.ProviderSpotify)
		}(i)
	}

	// Let all callers pile onto the in-flight refresh before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges), "concurrent callers must share one exchange")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "tok", results[i])
	}
}

func TestInvalidateForcesRefresh(t *testing.T) {
	var calls int32
	c := NewCache()
	c.Register(models.ProviderGitHub, func(_ context.Context, _ Token) (Token, error) {
		atomic.AddInt32(&calls, 1)
		return Token{Value: "pat"}, nil
	})

	_, err := c.GetAccessToken(context.Background(), models.ProviderGitHub)
	require.NoError(t, err)
	_, err = c.GetAccessToken(context.Background(), models.ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "static token should be cached")

	c.Invalidate(models.ProviderGitHub)

	_, err = c.GetAccessToken(context.Background(), models.ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "invalidate must force a refresh")
}

func TestInvalidatePreservesRefreshToken(t *testing.T) {
	c := NewCache()
	var seen string
	c.Register(models.ProviderSpotify, func(_ context.Context, current Token) (Token, error) {
		seen = current.RefreshToken
		return Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour), RefreshToken: "rotated"}, nil
	})

	_, err := c.GetAccessToken(context.Background(), models.ProviderSpotify)
	require.NoError(t, err)

	c.Invalidate(models.ProviderSpotify)

	_, err = c.GetAccessToken(context.Background(), models.ProviderSpotify)
	require.NoError(t, err)
	assert.Equal(t, "rotated", seen, "rotated refresh token must survive invalidation")
}

func TestSpotifyRefresherExchange(t *testing.T) {
	var rotations int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "cid", user)
		assert.Equal(t, "csecret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))

		atomic.AddInt32(&rotations, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600,"refresh_token":"rotated-rt"}`))
	}))
	defer srv.Close()

	refresher := NewSpotifyRefresher(config.SpotifyConfig{
		ClientID:     "cid",
		ClientSecret: "csecret",
		RefreshToken: "configured-rt",
	}, srv.Client(), srv.URL)

	tok, err := refresher(context.Background(), Token{})
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.Value)
	assert.Equal(t, "rotated-rt", tok.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)
}

func TestSpotifyRefresherMissingConfig(t *testing.T) {
	refresher := NewSpotifyRefresher(config.SpotifyConfig{ClientID: "cid"}, nil, "")
	_, err := refresher(context.Background(), Token{})
	assert.ErrorIs(t, err, ErrConfigMissing)
}

func TestSpotifyRefresherUpstreamRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	refresher := NewSpotifyRefresher(config.SpotifyConfig{
		ClientID: "cid", ClientSecret: "cs", RefreshToken: "rt",
	}, srv.Client(), srv.URL)

	_, err := refresher(context.Background(), Token{})
	assert.ErrorIs(t, err, ErrRefreshFailed)
}

func TestGitHubStaticToken(t *testing.T) {
	refresher := NewGitHubStatic(config.GitHubConfig{Token: "ghp_abc"})
	tok, err := refresher(context.Background(), Token{})
	require.NoError(t, err)
	assert.Equal(t, "ghp_abc", tok.Value)
	assert.True(t, tok.ExpiresAt.IsZero(), "PATs never expire")

	refresher = NewGitHubStatic(config.GitHubConfig{})
	_, err = refresher(context.Background(), Token{})
	assert.ErrorIs(t, err, ErrConfigMissing)
}
