// Package bus fires watches from watch.triggered events consumed from the event bus.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/watcher/pkg/clock"
	"github.com/dukex/watcher/pkg/eventbus"
	"github.com/dukex/watcher/pkg/events"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/protocol"
)

type Engine struct {
	logger     *slog.Logger
	clock      clock.Clock
	subscriber eventbus.EventSubscriber

	mu       sync.RWMutex
	watches  map[string]struct{}
	listener protocol.TriggerListener
}

var _ protocol.TriggerEngine = (*Engine)(nil)

// NewEngine registers its handler on subscriber. The subscriber must be
// subscribed by the caller once every handler is registered.
func NewEngine(logger *slog.Logger, clk clock.Clock, subscriber eventbus.EventSubscriber) (*Engine, error) {
	e := &Engine{
		logger:     logger.With("module", "bus_trigger"),
		clock:      clk,
		subscriber: subscriber,
		watches:    make(map[string]struct{}),
	}

	err := subscriber.Handle(events.WatchTriggeredEvent, e.handle)
	if err != nil {
		return nil, fmt.Errorf("failed to handle %s events: %w", events.WatchTriggeredEvent, err)
	}

	return e, nil
}

func (*Engine) Type() models.TriggerType {
	return models.TriggerTypeEvent
}

// Add accepts every watch; any watch can be fired through the bus.
func (e *Engine) Add(watch *models.Watch) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.watches[watch.ID] = struct{}{}

	return true, nil
}

func (e *Engine) Remove(watchID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, exists := e.watches[watchID]
	delete(e.watches, watchID)

	return exists
}

func (e *Engine) Start(_ context.Context, listener protocol.TriggerListener) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listener = listener

	return nil
}

func (e *Engine) Stop(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listener = nil

	return nil
}

func (e *Engine) handle(ctx context.Context, event any) error {
	triggered, ok := event.(*events.WatchTriggered)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	e.mu.RLock()
	listener := e.listener
	_, known := e.watches[triggered.TriggerEvent.WatchID]
	e.mu.RUnlock()

	if listener == nil {
		return nil
	}

	if !known {
		e.logger.WarnContext(ctx, "Dropping trigger for an unknown watch", "watch_id", triggered.TriggerEvent.WatchID)

		return nil
	}

	trigger := triggered.TriggerEvent
	trigger.Type = models.TriggerTypeEvent

	if trigger.TriggeredTime.IsZero() {
		trigger.TriggeredTime = e.clock.Now()
	}

	if trigger.ScheduledTime.IsZero() {
		trigger.ScheduledTime = triggered.Timestamp
	}

	listener.Triggered(ctx, []models.TriggerEvent{trigger})

	return nil
}

// Fire publishes a watch.triggered event for the watch.
func Fire(ctx context.Context, publisher eventbus.EventPublisher, watchID string, data map[string]any) error {
	event := events.NewWatchTriggered(models.TriggerEvent{
		WatchID: watchID,
		Type:    models.TriggerTypeEvent,
		Data:    data,
	})

	err := publisher.Publish(ctx, watchID, event)
	if err != nil {
		return fmt.Errorf("failed to publish trigger for watch %s: %w", watchID, err)
	}

	return nil
}
