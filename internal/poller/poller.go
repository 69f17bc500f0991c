// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

// Package poller adapts fetch cadence to observed demand. A controller
// polls fast while someone is watching, slows down when interaction
// stops, and suspends entirely when the view is hidden or idle past the
// tier's ceiling, so an abandoned dashboard stops costing upstream
// quota.
//
// State transitions are pure functions over (tier, visibility, last
// interaction, now); the goroutine around them only handles timing.
// That split keeps the cadence rules deterministic under test without
// faking timers.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/remcostoeten/pulse/internal/logging"
	"github.com/remcostoeten/pulse/internal/metrics"
	"github.com/remcostoeten/pulse/internal/models"
)

// State is the controller's activity level.
type State int

const (
	// StateActive polls at the tier's active interval.
	StateActive State = iota
	// StateInactive polls at the tier's slower inactive interval.
	StateInactive
	// StateSuspended does not poll at all until an interaction or
	// visibility change wakes the controller.
	StateSuspended
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	default:
		return "suspended"
	}
}

// stateFor derives the state from first principles. Hidden always means
// suspended, regardless of how recent the last interaction was.
func stateFor(tier models.PollingTier, visible bool, lastInteraction, now time.Time) State {
	if !visible {
		return StateSuspended
	}

	idle := now.Sub(lastInteraction)
	if idle >= tier.MaxInactiveTime {
		return StateSuspended
	}
	if idle >= tier.InactivityThreshold {
		// Tiers without an inactive cadence skip the slow phase and
		// suspend at the threshold.
		if tier.InactiveInterval <= 0 {
			return StateSuspended
		}
		return StateInactive
	}
	return StateActive
}

// intervalFor returns the polling interval for a state; zero means no
// polling.
func intervalFor(tier models.PollingTier, state State) time.Duration {
	switch state {
	case StateActive:
		return tier.ActiveInterval
	case StateInactive:
		return tier.InactiveInterval
	default:
		return 0
	}
}

// FetchFunc performs one poll. Errors are the fetcher's concern; the
// controller only schedules.
type FetchFunc func(ctx context.Context)

// Controller runs the adaptive polling loop for one tier.
//
// Thread Safety: RecordInteraction and SetVisible are safe to call from
// any goroutine, including concurrently with Start/Stop.
type Controller struct {
	tier  models.PollingTier
	fetch FetchFunc

	mu              sync.Mutex
	visible         bool
	lastInteraction time.Time
	running         bool

	stopChan chan struct{}
	wake     chan struct{}
	wg       sync.WaitGroup
	now      func() time.Time
}

// NewController creates a stopped controller. The view starts visible
// with the clock as its last interaction, so polling begins in the
// active state.
func NewController(tier models.PollingTier, fetch FetchFunc) *Controller {
	c := &Controller{
		tier:    tier,
		fetch:   fetch,
		visible: true,
		now:     time.Now,
		wake:    make(chan struct{}, 1),
	}
	c.lastInteraction = c.now()
	return c
}

// SetClock replaces the controller's clock. Testing only; call before
// Start.
func (c *Controller) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	c.lastInteraction = now()
}

// Start launches the polling loop. The first fetch fires immediately.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopChan = make(chan struct{})
	c.mu.Unlock()

	c.wg.Add(1)
	go c.pollLoop(ctx)
	logging.Info().Str("tier", c.tier.Name).Msg("Poller started")
}

// Stop halts the loop and waits for it to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopChan)
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info().Str("tier", c.tier.Name).Msg("Poller stopped")
}

// Serve implements suture.Service, running the polling loop until the
// context is cancelled.
func (c *Controller) Serve(ctx context.Context) error {
	c.Start(ctx)
	<-ctx.Done()
	c.Stop()
	return ctx.Err()
}

func (c *Controller) String() string {
	return "poller-" + c.tier.Name
}

// RecordInteraction marks user activity now. If the controller was
// suspended or slowed down, it returns to the active cadence and fires
// an immediate fetch.
func (c *Controller) RecordInteraction() {
	c.mu.Lock()
	before := c.currentStateLocked()
	c.lastInteraction = c.now()
	after := c.currentStateLocked()
	c.mu.Unlock()

	if before != after {
		c.wakeLoop()
	}
}

// SetVisible reports a visibility change. Hiding suspends immediately;
// becoming visible counts as an interaction and resumes the active
// cadence with an immediate fetch.
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	changed := c.visible != visible
	c.visible = visible
	if visible && changed {
		c.lastInteraction = c.now()
	}
	c.mu.Unlock()

	if changed {
		c.wakeLoop()
	}
}

// State returns the controller's current derived state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentStateLocked()
}

func (c *Controller) currentStateLocked() State {
	return stateFor(c.tier, c.visible, c.lastInteraction, c.now())
}

func (c *Controller) wakeLoop() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// pollLoop owns all timing. Each pass derives the state, publishes it,
// fetches if due, then sleeps until the next deadline, a wake signal, or
// shutdown. Suspended passes park without a timer.
func (c *Controller) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	// Transitions out of suspension fetch immediately; the initial
	// start counts as one.
	pending := true

	for {
		c.mu.Lock()
		state := c.currentStateLocked()
		stopChan := c.stopChan
		c.mu.Unlock()

		metrics.PollerState.WithLabelValues(c.tier.Name).Set(float64(state))

		if state == StateSuspended {
			pending = true // fetch as soon as we wake
			select {
			case <-c.wake:
				continue
			case <-stopChan:
				return
			case <-ctx.Done():
				return
			}
		}

		if pending {
			pending = false
			c.runFetch(ctx, state)
		}

		interval := intervalFor(c.tier, state)
		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
			c.runFetch(ctx, c.State())
		case <-c.wake:
			timer.Stop()
			pending = true
		case <-stopChan:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (c *Controller) runFetch(ctx context.Context, state State) {
	if state == StateSuspended {
		return
	}
	metrics.PollerFetches.WithLabelValues(c.tier.Name, state.String()).Inc()
	c.fetch(ctx)
}
