// Package publish provides the action that publishes an alert on the event bus.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/dukex/watcher/pkg/eventbus"
	"github.com/dukex/watcher/pkg/events"
	"github.com/dukex/watcher/pkg/protocol"
	"github.com/dukex/watcher/pkg/template"
)

type ActionFactory struct {
	publisher eventbus.EventPublisher
}

func NewActionFactory(publisher eventbus.EventPublisher) *ActionFactory {
	return &ActionFactory{publisher: publisher}
}

func (*ActionFactory) ID() string {
	return "publish"
}

func (f *ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	if f.publisher == nil {
		return nil, fmt.Errorf("the publish action needs an event bus")
	}

	metadata, _ := config["metadata"].(map[string]any)

	return &Action{publisher: f.publisher, Metadata: metadata}, nil
}

// Action publishes a watch.alert event carrying the current payload.
type Action struct {
	Metadata map[string]any

	publisher eventbus.EventPublisher
}

func (a *Action) event(model map[string]any) events.WatchAlert {
	watchID, _ := template.Lookup(model, "ctx.watch_id").(string)
	recordID, _ := template.Lookup(model, "ctx.id").(string)
	actionID, _ := template.Lookup(model, "ctx.action_id").(string)
	payload, _ := template.Lookup(model, "ctx.payload").(map[string]any)

	event := events.WatchAlert{
		BaseEvent:     events.NewBaseEvent(events.WatchAlertEvent, watchID),
		WatchRecordID: recordID,
		ActionID:      actionID,
		Payload:       payload,
	}
	event.Metadata = maps.Clone(a.Metadata)

	return event
}

func (a *Action) Execute(ctx context.Context, model map[string]any, logger *slog.Logger) (any, error) {
	event := a.event(model)

	err := a.publisher.Publish(ctx, event.WatchID, event)
	if err != nil {
		return nil, fmt.Errorf("failed to publish alert: %w", err)
	}

	logger.DebugContext(ctx, "Published alert", "action_type", "publish", "event_id", event.ID)

	return map[string]any{"event_id": event.ID}, nil
}

func (a *Action) Simulate(_ context.Context, model map[string]any) (any, error) {
	event := a.event(model)

	return map[string]any{"event_type": string(event.Type), "payload": event.Payload}, nil
}
