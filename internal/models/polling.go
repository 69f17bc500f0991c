// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package models

import "time"

// PollingTier is a named interval bundle for activity-aware polling.
// Consumers pick a tier per data type; the controller only ever reads the
// four numeric parameters.
type PollingTier struct {
	Name string `json:"name"`

	// ActiveInterval is the fetch cadence while the consumer is active.
	ActiveInterval time.Duration `json:"activeInterval"`

	// InactiveInterval is the cadence after the inactivity threshold is
	// crossed. Zero stops polling entirely in the inactive state.
	InactiveInterval time.Duration `json:"inactiveInterval"`

	// MaxInactiveTime suspends polling once the consumer has been inactive
	// this long, regardless of InactiveInterval.
	MaxInactiveTime time.Duration `json:"maxInactiveTime"`

	// InactivityThreshold is how long after the last interaction the
	// consumer is considered inactive.
	InactivityThreshold time.Duration `json:"inactivityThreshold"`
}

// The four named tiers. Realtime suits now-playing data, analytics suits
// dashboard charts, background and passive suit slow-moving showcase data.
var (
	TierRealtime = PollingTier{
		Name:                "realtime",
		ActiveInterval:      30 * time.Second,
		InactiveInterval:    2 * time.Minute,
		MaxInactiveTime:     30 * time.Minute,
		InactivityThreshold: 5 * time.Minute,
	}
	TierAnalytics = PollingTier{
		Name:                "analytics",
		ActiveInterval:      2 * time.Minute,
		InactiveInterval:    10 * time.Minute,
		MaxInactiveTime:     time.Hour,
		InactivityThreshold: 5 * time.Minute,
	}
	TierBackground = PollingTier{
		Name:                "background",
		ActiveInterval:      5 * time.Minute,
		InactiveInterval:    0,
		MaxInactiveTime:     30 * time.Minute,
		InactivityThreshold: 10 * time.Minute,
	}
	TierPassive = PollingTier{
		Name:                "passive",
		ActiveInterval:      15 * time.Minute,
		InactiveInterval:    0,
		MaxInactiveTime:     15 * time.Minute,
		InactivityThreshold: 10 * time.Minute,
	}
)

// TierByName resolves a tier by its name. The second return is false for
// unknown names.
func TierByName(name string) (PollingTier, bool) {
	switch name {
	case "realtime":
		return TierRealtime, true
	case "analytics":
		return TierAnalytics, true
	case "background":
		return TierBackground, true
	case "passive":
		return TierPassive, true
	default:
		return PollingTier{}, false
	}
}
