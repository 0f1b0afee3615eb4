package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/watcher/pkg/eventbus"
	"github.com/dukex/watcher/pkg/events"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/persistence"
	"github.com/dukex/watcher/pkg/protocol"
)

// WatchSource reloads watches changed by other nodes.
type WatchSource interface {
	Refresh(ctx context.Context, id string) (*models.Watch, error)
}

// Manager fans watch registrations out to every trigger engine.
type Manager struct {
	logger  *slog.Logger
	engines []protocol.TriggerEngine
}

func NewManager(logger *slog.Logger, engines ...protocol.TriggerEngine) *Manager {
	return &Manager{
		logger:  logger.With("module", "trigger_manager"),
		engines: engines,
	}
}

// Add schedules the watch on every engine that handles its trigger.
func (m *Manager) Add(watch *models.Watch) error {
	var errs []error

	for _, engine := range m.engines {
		added, err := engine.Add(watch)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s engine: %w", engine.Type(), err))

			continue
		}

		if added {
			m.logger.Debug("Watch scheduled", "watch_id", watch.ID, "engine", engine.Type())
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) Remove(watchID string) {
	for _, engine := range m.engines {
		if engine.Remove(watchID) {
			m.logger.Debug("Watch unscheduled", "watch_id", watchID, "engine", engine.Type())
		}
	}
}

// Load schedules every watch, logging the ones that fail.
func (m *Manager) Load(watches []*models.Watch) {
	for _, watch := range watches {
		err := m.Add(watch)
		if err != nil {
			m.logger.Error("Failed to schedule watch", "watch_id", watch.ID, "error", err)
		}
	}
}

func (m *Manager) Start(ctx context.Context, listener protocol.TriggerListener) error {
	for _, engine := range m.engines {
		err := engine.Start(ctx, listener)
		if err != nil {
			return fmt.Errorf("failed to start %s engine: %w", engine.Type(), err)
		}

		m.logger.InfoContext(ctx, "Trigger engine started", "engine", engine.Type())
	}

	return nil
}

func (m *Manager) Stop(ctx context.Context) error {
	var errs []error

	for _, engine := range m.engines {
		err := engine.Stop(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s engine: %w", engine.Type(), err))
		}
	}

	return errors.Join(errs...)
}

// FollowWatchChanges keeps the engines in sync with watches stored or deleted
// by other nodes. Changes published by nodeID itself are ignored.
func (m *Manager) FollowWatchChanges(subscriber eventbus.EventSubscriber, source WatchSource, nodeID string) error {
	err := subscriber.Handle(events.WatchUpdatedEvent, func(ctx context.Context, event any) error {
		updated, ok := event.(*events.WatchUpdated)
		if !ok || updated.NodeID == nodeID {
			return nil
		}

		watch, err := source.Refresh(ctx, updated.WatchID)
		if persistence.IsWatchNotFound(err) {
			m.Remove(updated.WatchID)

			return nil
		}

		if err != nil {
			return err
		}

		return m.Add(watch)
	})
	if err != nil {
		return fmt.Errorf("failed to follow watch updates: %w", err)
	}

	err = subscriber.Handle(events.WatchDeletedEvent, func(ctx context.Context, event any) error {
		deleted, ok := event.(*events.WatchDeleted)
		if !ok || deleted.NodeID == nodeID {
			return nil
		}

		_, err := source.Refresh(ctx, deleted.WatchID)
		if err != nil && !persistence.IsWatchNotFound(err) {
			return err
		}

		m.Remove(deleted.WatchID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to follow watch deletions: %w", err)
	}

	return nil
}
