// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

// Package token holds provider access tokens in process-wide memory and
// refreshes them on demand.
//
// Tokens are deliberately not persisted across restarts: a refresh-token
// exchange is cheap and idempotent, so cold-start staleness is acceptable.
// Refreshes for the same provider are single-flighted so concurrent
// callers share one upstream exchange; refresh-token rotation races are
// impossible by construction.
package token

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/remcostoeten/pulse/internal/logging"
	"github.com/remcostoeten/pulse/internal/metrics"
	"github.com/remcostoeten/pulse/internal/models"
)

// safetyMargin is subtracted from a token's expiry when deciding whether
// a cached token is still usable, so callers never receive a token that
// expires mid-request.
const safetyMargin = 60 * time.Second

var (
	// ErrConfigMissing indicates the provider's credentials are absent
	// from configuration. Permanent until an operator fixes the config;
	// callers degrade to a "not configured" response.
	ErrConfigMissing = errors.New("integration credentials not configured")

	// ErrRefreshFailed indicates the token exchange itself failed —
	// likely revoked credentials. Distinct from ErrConfigMissing so the
	// API can map it to an authentication failure rather than a
	// degraded-success payload.
	ErrRefreshFailed = errors.New("token refresh exchange failed")
)

// Token is a provider access token with its refresh state.
type Token struct {
	Provider models.Provider
	Value    string
	// ExpiresAt is the upstream expiry. The zero value means the token
	// never expires (static PATs).
	ExpiresAt time.Time
	// RefreshToken is the provider-issued refresh token (Spotify only).
	// It may rotate on refresh; the rotated value is stored back.
	RefreshToken string
}

// usable reports whether the token can still be handed to a caller.
func (t Token) usable(now time.Time) bool {
	if t.Value == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(t.ExpiresAt.Add(-safetyMargin))
}

// RefreshFunc performs a token exchange for a provider. current carries
// the previously cached token so rotated refresh tokens survive; it is
// the zero Token on first use.
type RefreshFunc func(ctx context.Context, current Token) (Token, error)

// Cache is the process-wide token cache. It is an explicitly owned,
// injectable object (not a hidden singleton) so tests can substitute a
// fake clock and refresher and assert single-flight behavior.
type Cache struct {
	mu         sync.RWMutex
	tokens     map[models.Provider]Token
	refreshers map[models.Provider]RefreshFunc
	flight     singleflight.Group
	now        func() time.Time
}

// NewCache creates an empty token cache.
func NewCache() *Cache {
	return &Cache{
		tokens:     make(map[models.Provider]Token),
		refreshers: make(map[models.Provider]RefreshFunc),
		now:        time.Now,
	}
}

// SetClock replaces the cache's clock. Testing only.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Register installs the refresh function for a provider. A provider
// without a registered refresher is treated as not configured.
func (c *Cache) Register(provider models.Provider, fn RefreshFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshers[provider] = fn
}

// GetAccessToken returns a usable access token for the provider,
// refreshing first if the cached token is absent, expired, or inside the
// safety margin. Concurrent callers during a refresh await the same
// in-flight exchange.
func (c *Cache) GetAccessToken(ctx context.Context, provider models.Provider) (string, error) {
	c.mu.RLock()
	tok, cached := c.tokens[provider]
	refresher := c.refreshers[provider]
	now := c.now()
	c.mu.RUnlock()

	if cached && tok.usable(now) {
		return tok.Value, nil
	}

	if refresher == nil {
		return "", ErrConfigMissing
	}

	v, err, shared := c.flight.Do(string(provider), func() (interface{}, error) {
		return c.refresh(ctx, provider, refresher)
	})
	if shared {
		metrics.TokenRefreshesDeduped.WithLabelValues(string(provider)).Inc()
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// refresh runs one token exchange and stores the result. Runs inside the
// single-flight group; only this method mutates token values.
func (c *Cache) refresh(ctx context.Context, provider models.Provider, refresher RefreshFunc) (string, error) {
	// Re-check under the flight: another caller may have completed a
	// refresh between our miss and acquiring the flight slot.
	c.mu.RLock()
	current := c.tokens[provider]
	now := c.now()
	c.mu.RUnlock()

	if current.usable(now) {
		return current.Value, nil
	}

	fresh, err := refresher(ctx, current)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(string(provider), "failure").Inc()
		return "", err
	}
	fresh.Provider = provider

	// Keep the previous refresh token when the provider did not rotate it.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}

	c.mu.Lock()
	c.tokens[provider] = fresh
	c.mu.Unlock()

	metrics.TokenRefreshes.WithLabelValues(string(provider), "success").Inc()
	logging.Debug().Str("provider", string(provider)).Time("expires_at", fresh.ExpiresAt).Msg("Access token refreshed")

	return fresh.Value, nil
}

// Invalidate clears the cached token so the next GetAccessToken forces a
// refresh. Provider clients call this once upon receiving an upstream
// 401, enabling exactly one retry with a freshly minted token.
func (c *Cache) Invalidate(provider models.Provider) {
	c.mu.Lock()
	tok := c.tokens[provider]
	tok.Value = ""
	tok.ExpiresAt = time.Time{}
	c.tokens[provider] = tok
	c.mu.Unlock()

	metrics.TokenInvalidations.WithLabelValues(string(provider)).Inc()
	logging.Debug().Str("provider", string(provider)).Msg("Access token invalidated")
}
