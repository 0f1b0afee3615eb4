// Package schedule fires watches on cron expressions or fixed intervals.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/watcher/pkg/clock"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/protocol"
	"github.com/robfig/cron/v3"
)

type Engine struct {
	logger *slog.Logger
	clock  clock.Clock
	cron   *cron.Cron

	mu       sync.Mutex
	entries  map[string]cron.EntryID
	listener protocol.TriggerListener
	ctx      context.Context
}

var _ protocol.TriggerEngine = (*Engine)(nil)

func NewEngine(logger *slog.Logger, clk clock.Clock) *Engine {
	logger = logger.With("module", "schedule_trigger")
	cronLogger := &cronLogger{logger: logger}

	return &Engine{
		logger: logger,
		clock:  clk,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		entries: make(map[string]cron.EntryID),
	}
}

func (*Engine) Type() models.TriggerType {
	return models.TriggerTypeSchedule
}

// Add replaces the schedule of the watch. Watches without a schedule are not handled.
func (e *Engine) Add(watch *models.Watch) (bool, error) {
	schedule := watch.Trigger.Schedule
	if schedule == nil {
		e.Remove(watch.ID)

		return false, nil
	}

	var (
		parsed cron.Schedule
		err    error
	)

	if schedule.Interval != nil {
		parsed = cron.Every(schedule.Interval.Std())
	} else {
		parsed, err = cron.ParseStandard(schedule.Cron)
		if err != nil {
			return false, fmt.Errorf("invalid cron expression '%s' for watch %s: %w", schedule.Cron, watch.ID, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if id, exists := e.entries[watch.ID]; exists {
		e.cron.Remove(id)
	}

	watchID := watch.ID
	e.entries[watchID] = e.cron.Schedule(parsed, cron.FuncJob(func() {
		e.fire(watchID)
	}))

	return true, nil
}

func (e *Engine) Remove(watchID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, exists := e.entries[watchID]
	if !exists {
		return false
	}

	e.cron.Remove(id)
	delete(e.entries, watchID)

	return true
}

// Scheduled returns the ids of the scheduled watches with their next firing time.
func (e *Engine) Scheduled() map[string]time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	scheduled := make(map[string]time.Time, len(e.entries))
	for watchID, id := range e.entries {
		scheduled[watchID] = e.cron.Entry(id).Next
	}

	return scheduled
}

func (e *Engine) Start(ctx context.Context, listener protocol.TriggerListener) error {
	e.mu.Lock()
	e.listener = listener
	e.ctx = context.WithoutCancel(ctx)
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "Starting schedule trigger engine", "watches", len(e.Scheduled()))
	e.cron.Start()

	return nil
}

// Stop stops firing and waits for running jobs, or for ctx to be done.
func (e *Engine) Stop(ctx context.Context) error {
	stopped := e.cron.Stop()

	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) fire(watchID string) {
	now := e.clock.Now()

	e.mu.Lock()
	entryID, scheduledWatch := e.entries[watchID]
	listener := e.listener
	ctx := e.ctx
	e.mu.Unlock()

	if listener == nil || !scheduledWatch {
		return
	}

	scheduled := e.cron.Entry(entryID).Prev
	if scheduled.IsZero() {
		scheduled = now
	}

	e.logger.DebugContext(ctx, "Schedule fired", "watch_id", watchID, "scheduled_time", scheduled)

	listener.Triggered(ctx, []models.TriggerEvent{{
		WatchID:       watchID,
		Type:          models.TriggerTypeSchedule,
		TriggeredTime: now,
		ScheduledTime: scheduled.UTC(),
	}})
}

// cronLogger routes the cron library logs to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
