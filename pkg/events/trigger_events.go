package events

import (
	"github.com/dukex/watcher/pkg/models"
)

const (
	// WatchTriggeredEvent asks the engine to execute a watch. The bus trigger
	// engine consumes it.
	WatchTriggeredEvent EventType = "watch.triggered"
)

type WatchTriggered struct {
	BaseEvent

	TriggerEvent models.TriggerEvent `json:"trigger_event"`
}

func (WatchTriggered) GetType() EventType {
	return WatchTriggeredEvent
}

func NewWatchTriggered(event models.TriggerEvent) WatchTriggered {
	return WatchTriggered{
		BaseEvent:    NewBaseEvent(WatchTriggeredEvent, event.WatchID),
		TriggerEvent: event,
	}
}

type WatchExecuted struct {
	BaseEvent

	Record models.WatchRecord `json:"record"`
}

func (WatchExecuted) GetType() EventType {
	return WatchExecutedEvent
}

func NewWatchExecuted(record models.WatchRecord) WatchExecuted {
	event := WatchExecuted{
		BaseEvent: NewBaseEvent(WatchExecutedEvent, record.WatchID),
		Record:    record,
	}
	event.NodeID = record.NodeID

	return event
}
