package protocol

import (
	"context"

	"github.com/dukex/watcher/pkg/models"
)

// TriggerListener receives batches of simultaneously fired triggers.
type TriggerListener interface {
	Triggered(ctx context.Context, events []models.TriggerEvent)
}

// TriggerEngine schedules the watches whose trigger it understands and reports
// firings to a listener.
type TriggerEngine interface {
	Type() models.TriggerType
	// Add schedules the watch, replacing any earlier schedule for the same id.
	// It reports false when the watch trigger is not handled by this engine.
	Add(watch *models.Watch) (bool, error)
	Remove(watchID string) bool
	Start(ctx context.Context, listener TriggerListener) error
	Stop(ctx context.Context) error
}
