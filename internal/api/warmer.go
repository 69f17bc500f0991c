// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package api

import (
	"context"

	"github.com/remcostoeten/pulse/internal/cache"
	"github.com/remcostoeten/pulse/internal/logging"
	"github.com/remcostoeten/pulse/internal/models"
	"github.com/remcostoeten/pulse/internal/poller"
	"github.com/remcostoeten/pulse/internal/sync"
)

// NewNowPlayingWarmer builds the adaptive poller that keeps the
// now-playing cache entry fresh while the read endpoints see traffic.
// Wire the returned controller's RecordInteraction as the handler's
// read hook; without viewers it slows down and eventually suspends, so
// an idle deployment stops spending Spotify quota.
func NewNowPlayingWarmer(spotify sync.SpotifyAPI, c *cache.Cache) *poller.Controller {
	return poller.NewController(models.TierRealtime, func(ctx context.Context) {
		playing, err := spotify.GetCurrentlyPlaying(ctx)
		if err != nil {
			logging.Debug().Err(err).Msg("Now-playing warm fetch failed")
			return
		}
		c.Set("activity:spotify:current", tierRealtime.policy, &models.NowPlayingResponse{NowPlaying: *playing})
	})
}
