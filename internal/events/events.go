// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

// Package events is the in-process pub/sub layer between the sync
// orchestrator and everything that reacts to new data (cache
// invalidation, the poller's warm path). Backed by Watermill's
// gochannel transport: same message contract as a broker-backed setup,
// no external dependency for a single-instance deployment.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/remcostoeten/pulse/internal/logging"
	"github.com/remcostoeten/pulse/internal/models"
)

// TopicActivitySynced carries one message per completed sync run that
// landed at least one new record.
const TopicActivitySynced = "activity.synced"

// ActivitySyncedEvent describes what a sync run changed.
type ActivitySyncedEvent struct {
	Providers  []models.Provider `json:"providers"`
	NewRecords int64             `json:"newRecords"`
	SyncedAt   time.Time         `json:"syncedAt"`
}

// Bus is the process-wide event bus.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates an in-process bus. Subscribers registered after a
// publish do not see earlier messages; sync events are ephemeral
// signals, not a durable log.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, newLoggerAdapter()),
	}
}

// PublishActivitySynced emits one sync-completed event.
func (b *Bus) PublishActivitySynced(event ActivitySyncedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode sync event: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := b.pubsub.Publish(TopicActivitySynced, msg); err != nil {
		return fmt.Errorf("failed to publish sync event: %w", err)
	}
	return nil
}

// SubscribeActivitySynced runs handler for every sync event until ctx
// is cancelled. Decode failures are logged and the message dropped;
// handlers never see malformed events.
func (b *Bus) SubscribeActivitySynced(ctx context.Context, handler func(ActivitySyncedEvent)) error {
	messages, err := b.pubsub.Subscribe(ctx, TopicActivitySynced)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TopicActivitySynced, err)
	}

	go func() {
		for msg := range messages {
			var event ActivitySyncedEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping malformed sync event")
				msg.Ack()
				continue
			}
			handler(event)
			msg.Ack()
		}
	}()
	return nil
}

// Close shuts the bus down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// loggerAdapter bridges Watermill's logging interface onto zerolog.
type loggerAdapter struct {
	fields watermill.LogFields
}

func newLoggerAdapter() watermill.LoggerAdapter {
	return &loggerAdapter{}
}

func (l *loggerAdapter) event(evt *zerolog.Event, msg string, err error, fields watermill.LogFields) {
	if err != nil {
		evt = evt.Err(err)
	}
	for k, v := range l.fields.Add(fields) {
		evt = evt.Interface(k, v)
	}
	evt.Msg(msg)
}

func (l *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.event(logging.Error(), msg, err, fields)
}

func (l *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.event(logging.Info(), msg, nil, fields)
}

func (l *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.event(logging.Debug(), msg, nil, fields)
}

func (l *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.event(logging.Debug(), msg, nil, fields)
}

func (l *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{fields: l.fields.Add(fields)}
}
