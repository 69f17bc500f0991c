// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package sync

import (
	"context"
	"time"

	"github.com/remcostoeten/pulse/internal/logging"
)

// Scheduler drives periodic sync runs. It implements suture.Service so
// the supervisor restarts it if it ever panics. A zero interval means
// trigger-only mode: the service parks until shutdown and syncs happen
// solely via the API.
type Scheduler struct {
	manager  *Manager
	interval time.Duration
}

// NewScheduler creates the periodic sync service.
func NewScheduler(manager *Manager, interval time.Duration) *Scheduler {
	return &Scheduler{manager: manager, interval: interval}
}

// Serve runs the sync loop until ctx is cancelled. The first sync fires
// immediately so a fresh deployment has data before the first tick.
func (s *Scheduler) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		logging.Info().Msg("Sync scheduler disabled, running in trigger-only mode")
		<-ctx.Done()
		return ctx.Err()
	}

	logging.Info().Dur("interval", s.interval).Msg("Sync scheduler started")
	s.manager.SyncAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.manager.SyncAll(ctx)
		case <-ctx.Done():
			logging.Info().Msg("Sync scheduler stopping")
			return ctx.Err()
		}
	}
}

func (s *Scheduler) String() string {
	return "sync-scheduler"
}
