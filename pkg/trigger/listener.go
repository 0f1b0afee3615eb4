// Package trigger connects trigger engines to the execution service.
package trigger

import (
	"context"
	"log/slog"

	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/protocol"
)

// EventProcessor is the execution service as seen by the listeners.
type EventProcessor interface {
	ProcessEventsAsync(ctx context.Context, events []models.TriggerEvent) error
	ProcessEventsSync(ctx context.Context, events []models.TriggerEvent) ([]*models.WatchRecord, error)
}

// AsyncListener hands each batch to the processor and returns. A batch that
// cannot be handed over is logged and dropped; the engine fires again on its
// next schedule.
type AsyncListener struct {
	processor EventProcessor
	logger    *slog.Logger
}

var _ protocol.TriggerListener = (*AsyncListener)(nil)

func NewAsyncListener(logger *slog.Logger, processor EventProcessor) *AsyncListener {
	return &AsyncListener{
		processor: processor,
		logger:    logger.With("module", "trigger_listener"),
	}
}

func (l *AsyncListener) Triggered(ctx context.Context, events []models.TriggerEvent) {
	if len(events) == 0 {
		return
	}

	err := l.processor.ProcessEventsAsync(ctx, events)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to process triggered events",
			"watch_ids", watchIDs(events), "error", err)
	}
}

// SyncListener runs each batch on the calling goroutine.
type SyncListener struct {
	processor EventProcessor
	logger    *slog.Logger
}

var _ protocol.TriggerListener = (*SyncListener)(nil)

func NewSyncListener(logger *slog.Logger, processor EventProcessor) *SyncListener {
	return &SyncListener{
		processor: processor,
		logger:    logger.With("module", "trigger_listener"),
	}
}

func (l *SyncListener) Triggered(ctx context.Context, events []models.TriggerEvent) {
	if len(events) == 0 {
		return
	}

	_, err := l.processor.ProcessEventsSync(ctx, events)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to process triggered events",
			"watch_ids", watchIDs(events), "error", err)
	}
}

func watchIDs(events []models.TriggerEvent) []string {
	ids := make([]string, len(events))
	for i, event := range events {
		ids[i] = event.WatchID
	}

	return ids
}
