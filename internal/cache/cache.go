// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

// Package cache provides a thread-safe in-memory response cache with
// stale-while-revalidate semantics.
//
// Every entry moves through an explicit lifecycle rather than a single
// TTL boolean:
//
//	Fresh      — age < Freshness: served directly, no upstream work
//	Stale      — Freshness <= age < Freshness+StaleWindow: served
//	             immediately while ONE background refresh runs
//	Refreshing — a background refresh is in flight; further stale reads
//	             keep serving the old value without spawning more work
//	(expired)  — age >= Freshness+StaleWindow: treated as a miss, the
//	             caller blocks on a foreground fetch
//
// The explicit state machine exists so the "thundering refresh" failure
// mode is impossible: however many readers hit a stale key, exactly one
// fetch reaches the upstream.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/remcostoeten/pulse/internal/logging"
	"github.com/remcostoeten/pulse/internal/metrics"
)

// State is the lifecycle position of a cache entry at read time.
type State int

const (
	StateMiss State = iota
	StateFresh
	StateStale
	StateRefreshing
)

// String returns the metrics label for the state.
func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateRefreshing:
		return "refreshing"
	default:
		return "miss"
	}
}

// Policy is the freshness contract for one key.
type Policy struct {
	// Freshness is how long a value is served without any upstream work.
	Freshness time.Duration
	// StaleWindow is how long past Freshness the old value may still be
	// served while a background refresh runs. Zero disables serving
	// stale: expiry becomes a hard miss.
	StaleWindow time.Duration
}

// FetchFunc produces a fresh value for a key. It runs either in the
// caller's goroutine (miss) or a background goroutine (stale refresh).
type FetchFunc func(ctx context.Context) (interface{}, error)

type entry struct {
	value      interface{}
	fetchedAt  time.Time
	policy     Policy
	refreshing bool
}

// Stats tracks cache performance counters.
type Stats struct {
	Hits                int64
	StaleServed         int64
	Misses              int64
	BackgroundRefreshes int64
	Invalidations       int64
}

// Cache is a thread-safe stale-while-revalidate cache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	stats   Stats
	now     func() time.Time

	// refreshTimeout bounds background refreshes, which outlive the
	// request context that triggered them.
	refreshTimeout time.Duration
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries:        make(map[string]*entry),
		now:            time.Now,
		refreshTimeout: 30 * time.Second,
	}
}

// SetClock replaces the cache's clock. Testing only.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// stateOf classifies an entry at a point in time.
func (e *entry) stateOf(now time.Time) State {
	age := now.Sub(e.fetchedAt)
	switch {
	case age < e.policy.Freshness:
		return StateFresh
	case age < e.policy.Freshness+e.policy.StaleWindow:
		if e.refreshing {
			return StateRefreshing
		}
		return StateStale
	default:
		return StateMiss
	}
}

// GetOrRefresh returns the cached value for key, fetching as the entry's
// state demands:
//
//   - Fresh: the cached value, no fetch.
//   - Stale: the cached value immediately, plus one background refresh.
//   - Refreshing: the cached value; the in-flight refresh is not doubled.
//   - Miss (absent or past the stale window): a blocking foreground
//     fetch; the error, if any, is the fetch's error.
//
// The returned State describes what the caller was served.
func (c *Cache) GetOrRefresh(ctx context.Context, key string, policy Policy, fetch FetchFunc) (interface{}, State, error) {
	c.mu.Lock()
	now := c.now()
	e, exists := c.entries[key]

	if exists {
		switch e.stateOf(now) {
		case StateFresh:
			c.stats.Hits++
			v := e.value
			c.mu.Unlock()
			metrics.CacheRequests.WithLabelValues("fresh").Inc()
			return v, StateFresh, nil

		case StateRefreshing:
			c.stats.StaleServed++
			v := e.value
			c.mu.Unlock()
			metrics.CacheRequests.WithLabelValues("stale_served").Inc()
			return v, StateRefreshing, nil

		case StateStale:
			e.refreshing = true
			c.stats.StaleServed++
			c.stats.BackgroundRefreshes++
			v := e.value
			c.mu.Unlock()
			metrics.CacheRequests.WithLabelValues("stale_served").Inc()
			go c.refreshInBackground(key, policy, fetch)
			return v, StateStale, nil
		}
		// Past the stale window: fall through to a blocking fetch.
	}

	c.stats.Misses++
	c.mu.Unlock()
	metrics.CacheRequests.WithLabelValues("miss").Inc()

	value, err := fetch(ctx)
	if err != nil {
		return nil, StateMiss, err
	}
	c.store(key, policy, value)
	return value, StateMiss, nil
}

// refreshInBackground fetches a new value outside any request context.
// On failure the stale value stays in place and simply ages out.
func (c *Cache) refreshInBackground(key string, policy Policy, fetch FetchFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
	defer cancel()

	value, err := fetch(ctx)

	c.mu.Lock()
	if e, exists := c.entries[key]; exists {
		e.refreshing = false
	}
	c.mu.Unlock()

	if err != nil {
		metrics.CacheBackgroundRefreshes.WithLabelValues("failure").Inc()
		logging.Warn().Err(err).Str("key", key).Msg("Background cache refresh failed")
		return
	}
	metrics.CacheBackgroundRefreshes.WithLabelValues("success").Inc()
	c.store(key, policy, value)
}

func (c *Cache) store(key string, policy Policy, value interface{}) {
	c.mu.Lock()
	c.entries[key] = &entry{
		value:     value,
		fetchedAt: c.now(),
		policy:    policy,
	}
	c.mu.Unlock()
}

// Set stores a value directly, resetting its age. Used by warmers that
// already hold a fresh value.
func (c *Cache) Set(key string, policy Policy, value interface{}) {
	c.store(key, policy, value)
}

// InvalidatePrefix drops every entry whose key starts with prefix.
// Called when a sync lands new data, so the next read of any derived
// view is a miss against the updated store.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
			removed++
		}
	}
	c.stats.Invalidations += int64(removed)
	return removed
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetStats returns a snapshot of the counters.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
