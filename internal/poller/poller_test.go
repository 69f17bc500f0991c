// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remcostoeten/pulse/internal/models"
)

func TestStateForRealtimeTier(t *testing.T) {
	tier := models.TierRealtime
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		visible bool
		idle    time.Duration
		want    State
	}{
		{"fresh interaction", true, 0, StateActive},
		{"just under threshold", true, 5*time.Minute - time.Second, StateActive},
		{"at threshold", true, 5 * time.Minute, StateInactive},
		{"six minutes idle", true, 6 * time.Minute, StateInactive},
		{"just under max", true, 30*time.Minute - time.Second, StateInactive},
		{"at max inactive", true, 30 * time.Minute, StateSuspended},
		{"hidden overrides recent interaction", false, 0, StateSuspended},
		{"hidden while inactive", false, 6 * time.Minute, StateSuspended},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stateFor(tier, tt.visible, base.Add(-tt.idle), base)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateForTiersWithoutInactiveCadence(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// Background and passive have no slow phase: they jump from active
	// to suspended at the inactivity threshold.
	for _, tier := range []models.PollingTier{models.TierBackground, models.TierPassive} {
		assert.Equal(t, StateActive, stateFor(tier, true, base.Add(-time.Minute), base), tier.Name)
		assert.Equal(t, StateSuspended, stateFor(tier, true, base.Add(-tier.InactivityThreshold), base), tier.Name)
	}
}

func TestIntervalFor(t *testing.T) {
	tier := models.TierRealtime
	assert.Equal(t, 30*time.Second, intervalFor(tier, StateActive))
	assert.Equal(t, 2*time.Minute, intervalFor(tier, StateInactive))
	assert.Equal(t, time.Duration(0), intervalFor(tier, StateSuspended))
}

// cadenceScenario walks a realtime-tier session minute by minute: six
// minutes without interaction must produce exactly one cadence
// downshift, at the five-minute mark.
func TestRealtimeCadenceDownshiftsOnceAtThreshold(t *testing.T) {
	tier := models.TierRealtime
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	var transitions []time.Duration
	prev := stateFor(tier, true, start, start)
	for elapsed := time.Duration(0); elapsed <= 6*time.Minute; elapsed += 30 * time.Second {
		state := stateFor(tier, true, start, start.Add(elapsed))
		if state != prev {
			transitions = append(transitions, elapsed)
			prev = state
		}
	}

	require.Len(t, transitions, 1, "six idle minutes must downshift exactly once")
	assert.Equal(t, 5*time.Minute, transitions[0])
	assert.Equal(t, StateInactive, prev)
}

func newTestController(tier models.PollingTier, fetches *int32) (*Controller, chan struct{}) {
	fetched := make(chan struct{}, 64)
	c := NewController(tier, func(context.Context) {
		atomic.AddInt32(fetches, 1)
		select {
		case fetched <- struct{}{}:
		default:
		}
	})
	return c, fetched
}

func TestControllerFetchesImmediatelyOnStart(t *testing.T) {
	var fetches int32
	c, fetched := newTestController(models.TierRealtime, &fetches)

	c.Start(context.Background())
	defer c.Stop()

	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an immediate fetch on start")
	}
}

func TestControllerSuspendsWhenHidden(t *testing.T) {
	var fetches int32
	c, fetched := newTestController(models.TierRealtime, &fetches)

	c.Start(context.Background())
	defer c.Stop()

	<-fetched
	c.SetVisible(false)

	require.Eventually(t, func() bool {
		return c.State() == StateSuspended
	}, time.Second, 5*time.Millisecond)

	// No fetches while hidden.
	baseline := atomic.LoadInt32(&fetches)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, baseline, atomic.LoadInt32(&fetches))
}

func TestControllerResumeFetchesImmediately(t *testing.T) {
	var fetches int32
	c, fetched := newTestController(models.TierRealtime, &fetches)

	c.Start(context.Background())
	defer c.Stop()

	<-fetched
	c.SetVisible(false)
	require.Eventually(t, func() bool { return c.State() == StateSuspended }, time.Second, 5*time.Millisecond)

	// Drain any buffered signal before resuming.
	for {
		select {
		case <-fetched:
			continue
		default:
		}
		break
	}

	c.SetVisible(true)
	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an immediate fetch on resume")
	}
	assert.Equal(t, StateActive, c.State())
}

func TestControllerInteractionRestoresActive(t *testing.T) {
	var fetches int32
	c, _ := newTestController(models.TierRealtime, &fetches)

	// Use a fake clock to force the inactive state without waiting.
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})

	mu.Lock()
	now = now.Add(6 * time.Minute)
	mu.Unlock()
	assert.Equal(t, StateInactive, c.State())

	c.RecordInteraction()
	assert.Equal(t, StateActive, c.State())
}

func TestControllerStopIsIdempotent(t *testing.T) {
	var fetches int32
	c, _ := newTestController(models.TierRealtime, &fetches)

	c.Start(context.Background())
	c.Stop()
	c.Stop() // second stop must not panic or block
}
