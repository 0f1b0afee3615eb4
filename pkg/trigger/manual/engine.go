// Package manual fires watches on demand.
package manual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/watcher/pkg/clock"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/protocol"
)

var (
	ErrNotStarted   = errors.New("manual trigger engine is not started")
	ErrUnknownWatch = errors.New("watch is not registered with the manual trigger engine")
)

// Engine knows every watch and fires one when asked.
type Engine struct {
	logger *slog.Logger
	clock  clock.Clock

	mu       sync.RWMutex
	watches  map[string]struct{}
	listener protocol.TriggerListener
}

var _ protocol.TriggerEngine = (*Engine)(nil)

func NewEngine(logger *slog.Logger, clk clock.Clock) *Engine {
	return &Engine{
		logger:  logger.With("module", "manual_trigger"),
		clock:   clk,
		watches: make(map[string]struct{}),
	}
}

func (*Engine) Type() models.TriggerType {
	return models.TriggerTypeManual
}

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

// Fire triggers the given watches as one batch.
func (e *Engine) Fire(ctx context.Context, data map[string]any, watchIDs ...string) error {
	e.mu.RLock()
	listener := e.listener

	for _, id := range watchIDs {
		if _, exists := e.watches[id]; !exists {
			e.mu.RUnlock()

			return fmt.Errorf("%w [%s]", ErrUnknownWatch, id)
		}
	}
	e.mu.RUnlock()

	if listener == nil {
		return ErrNotStarted
	}

	now := e.clock.Now()
	batch := make([]models.TriggerEvent, len(watchIDs))

	for i, id := range watchIDs {
		batch[i] = models.TriggerEvent{
			WatchID:       id,
			Type:          models.TriggerTypeManual,
			TriggeredTime: now,
			ScheduledTime: now,
			Data:          data,
		}
	}

	e.logger.DebugContext(ctx, "Firing watches", "watch_ids", watchIDs)
	listener.Triggered(ctx, batch)

	return nil
}
