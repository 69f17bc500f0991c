// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderValid(t *testing.T) {
	assert.True(t, ProviderGitHub.Valid())
	assert.True(t, ProviderSpotify.Valid())
	assert.False(t, Provider("tidal").Valid())
	assert.False(t, Provider("").Valid())
}

func TestTierByName(t *testing.T) {
	for _, name := range []string{"realtime", "analytics", "background", "passive"} {
		tier, ok := TierByName(name)
		require.True(t, ok, "tier %q", name)
		assert.Equal(t, name, tier.Name)
		assert.Positive(t, tier.ActiveInterval)
		assert.Positive(t, tier.MaxInactiveTime)
		assert.Positive(t, tier.InactivityThreshold)
	}

	_, ok := TierByName("warp-speed")
	assert.False(t, ok)
}

func TestTierRealtimeParameters(t *testing.T) {
	// The realtime tier drives the now-playing endpoints; these values are
	// load-bearing for the polling scenarios.
	assert.Equal(t, 30*time.Second, TierRealtime.ActiveInterval)
	assert.Equal(t, 2*time.Minute, TierRealtime.InactiveInterval)
	assert.Equal(t, 5*time.Minute, TierRealtime.InactivityThreshold)
}

func TestNowPlayingResponseOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(NowPlayingResponse{
		NowPlaying: NowPlaying{IsPlaying: false},
		Message:    "No refresh token configured",
	})
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `"isPlaying":false`)
	assert.Contains(t, out, `"message":"No refresh token configured"`)
	assert.NotContains(t, out, "trackId")
}

func TestCombinedActivityResponseNeverNull(t *testing.T) {
	data, err := json.Marshal(CombinedActivityResponse{Activities: []ActivityItem{}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"activities":[]`)
}
