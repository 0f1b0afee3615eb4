// Package events defines the watch lifecycle events exchanged over the event bus.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const Topic = "watcher.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Watch definition events, published by the API when a watch is stored or removed.
	WatchUpdatedEvent EventType = "watch.updated"
	WatchDeletedEvent EventType = "watch.deleted"

	// WatchExecutedEvent carries the history record of a finished execution.
	WatchExecutedEvent EventType = "watch.executed"

	// WatchAlertEvent is published by the publish action.
	WatchAlertEvent EventType = "watch.alert"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	WatchID   string         `json:"watch_id"`
	NodeID    string         `json:"node_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, watchID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		WatchID:   watchID,
	}
}

type WatchUpdated struct {
	BaseEvent
}

func (WatchUpdated) GetType() EventType {
	return WatchUpdatedEvent
}

func NewWatchUpdated(watchID string) WatchUpdated {
	return WatchUpdated{BaseEvent: NewBaseEvent(WatchUpdatedEvent, watchID)}
}

type WatchDeleted struct {
	BaseEvent
}

func (WatchDeleted) GetType() EventType {
	return WatchDeletedEvent
}

func NewWatchDeleted(watchID string) WatchDeleted {
	return WatchDeleted{BaseEvent: NewBaseEvent(WatchDeletedEvent, watchID)}
}

type WatchAlert struct {
	BaseEvent

	WatchRecordID string         `json:"watch_record_id"`
	ActionID      string         `json:"action_id"`
	Payload       map[string]any `json:"payload,omitempty"`
}

func (WatchAlert) GetType() EventType {
	return WatchAlertEvent
}
