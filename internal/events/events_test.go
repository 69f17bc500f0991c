// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remcostoeten/pulse/internal/models"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	bus := NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan ActivitySyncedEvent, 1)
	require.NoError(t, bus.SubscribeActivitySynced(context.Background(), func(e ActivitySyncedEvent) {
		received <- e
	}))

	sent := ActivitySyncedEvent{
		Providers:  []models.Provider{models.ProviderGitHub, models.ProviderSpotify},
		NewRecords: 7,
		SyncedAt:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, bus.PublishActivitySynced(sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.Providers, got.Providers)
		assert.Equal(t, int64(7), got.NewRecords)
		assert.True(t, sent.SyncedAt.Equal(got.SyncedAt))
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	bus := NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	first := make(chan ActivitySyncedEvent, 1)
	second := make(chan ActivitySyncedEvent, 1)
	require.NoError(t, bus.SubscribeActivitySynced(context.Background(), func(e ActivitySyncedEvent) { first <- e }))
	require.NoError(t, bus.SubscribeActivitySynced(context.Background(), func(e ActivitySyncedEvent) { second <- e }))

	require.NoError(t, bus.PublishActivitySynced(ActivitySyncedEvent{NewRecords: 1}))

	for _, ch := range []chan ActivitySyncedEvent{first, second} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("a subscriber missed the event")
		}
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	bus := NewBus()

	require.NoError(t, bus.SubscribeActivitySynced(context.Background(), func(ActivitySyncedEvent) {}))
	require.NoError(t, bus.Close())

	err := bus.PublishActivitySynced(ActivitySyncedEvent{NewRecords: 1})
	assert.Error(t, err)
}
