// Package execution runs watch firings: it names each firing, tracks it while
// in flight, drives it through input, condition, transform and actions, and
// records exactly one outcome per firing.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/watcher/pkg/clock"
	"github.com/dukex/watcher/pkg/condition"
	"github.com/dukex/watcher/pkg/config"
	"github.com/dukex/watcher/pkg/executor"
	"github.com/dukex/watcher/pkg/history"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/otelhelper"
	"github.com/dukex/watcher/pkg/persistence"
	"github.com/dukex/watcher/pkg/registry"
)

// MessageSealed is the record message of a firing that arrived while the
// service was stopping. Such a firing never reached the pipeline.
const MessageSealed = "executions are sealed"

var (
	ErrNotStarted    = errors.New("execution service is not started")
	ErrUnknownAction = errors.New("unknown action")
)

// WatchStore is the view of the watch store the service needs.
type WatchStore interface {
	// Get returns a snapshot of the watch, or an error wrapping
	// persistence.ErrWatchNotFound.
	Get(ctx context.Context, id string) (*models.Watch, error)
	UpdateStatus(ctx context.Context, id string, update func(status *models.WatchStatus)) (models.WatchStatus, error)
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func WithMetrics(metrics *otelhelper.ExecutionMetrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

func WithExecutor(e *executor.Executor) Option {
	return func(s *Service) {
		s.executor = e
	}
}

type Service struct {
	logger     *slog.Logger
	config     config.Engine
	clock      clock.Clock
	watches    WatchStore
	conditions *condition.Registry
	components *registry.Registry
	history    history.Sink
	executor   *executor.Executor
	current    *CurrentExecutions
	throttler  Throttler
	tracer     trace.Tracer
	metrics    *otelhelper.ExecutionMetrics
	started    atomic.Bool
}

func NewService(
	logger *slog.Logger,
	cfg config.Engine,
	watches WatchStore,
	conditions *condition.Registry,
	components *registry.Registry,
	sink history.Sink,
	opts ...Option,
) *Service {
	s := &Service{
		logger:     logger.With("module", "execution"),
		config:     cfg,
		clock:      clock.System(),
		watches:    watches,
		conditions: conditions,
		components: components,
		history:    sink,
		current:    NewCurrentExecutions(),
		throttler:  NewThrottler(cfg.DefaultThrottlePeriod),
		tracer:     otel.Tracer("github.com/dukex/watcher/execution"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.executor == nil {
		s.executor = executor.New(logger, cfg.PoolSize, cfg.QueueCapacity)
	}

	if s.history == nil {
		s.history = history.Discard{}
	}

	return s
}

// Start makes the service accept firings. A stopped service can be started
// again.
func (s *Service) Start() {
	s.executor.Restart()
	s.current.Unseal()
	s.started.Store(true)
	s.logger.Info("Execution service started",
		"pool_size", s.config.PoolSize,
		"queue_capacity", s.config.QueueCapacity,
		"concurrency_policy", s.config.ConcurrencyPolicy)
}

// Stop stops accepting firings, drops what is still queued, waits up to the
// drain timeout for in-flight executions and stops the workers.
func (s *Service) Stop(ctx context.Context) error {
	if !s.started.CompareAndSwap(true, false) {
		return nil
	}

	drained := s.executor.Drain()
	for _, task := range drained {
		if wt, ok := task.(*watchTask); ok {
			s.current.Remove(wt.ctx.wid)
		}
	}

	if len(drained) > 0 {
		s.logger.InfoContext(ctx, "Dropped queued watch executions", "count", len(drained))
	}

	remaining := s.current.SealAndAwaitEmpty(ctx, s.config.DrainTimeout)

	shutdownCtx := ctx
	if remaining > 0 {
		s.logger.WarnContext(ctx, "Abandoning in-flight watch executions", "count", remaining)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		shutdownCtx = cancelled
	}

	err := s.executor.Shutdown(shutdownCtx)
	if err != nil && remaining == 0 {
		return fmt.Errorf("failed to stop executor: %w", err)
	}

	s.logger.InfoContext(ctx, "Execution service stopped")

	return nil
}

func (s *Service) Started() bool {
	return s.started.Load()
}

// ProcessEventsAsync registers every firing and queues it on the executor.
// Firings that cannot run are recorded right away.
func (s *Service) ProcessEventsAsync(ctx context.Context, events []models.TriggerEvent) error {
	if !s.started.Load() {
		return ErrNotStarted
	}

	for _, event := range events {
		ec, record := s.prepare(ctx, event)
		if record != nil {
			continue
		}

		err := s.executor.Execute(&watchTask{service: s, ctx: ec, parent: context.WithoutCancel(ctx)})
		if err != nil {
			s.current.Remove(ec.wid)

			if s.metrics != nil {
				s.metrics.RecordRejected(ctx, ec.WatchID())
			}

			s.logger.WarnContext(ctx, "Failed to queue watch execution", "watch_id", ec.WatchID(), "wid", ec.wid.String(), "error", err)
			s.finish(ctx, ec, models.ExecutionStateFailed, "failed to queue execution: "+err.Error(), nil)
		}
	}

	return nil
}

// ProcessEventsSync runs every firing on the calling goroutine and returns
// their records in order.
func (s *Service) ProcessEventsSync(ctx context.Context, events []models.TriggerEvent) ([]*models.WatchRecord, error) {
	if !s.started.Load() {
		return nil, ErrNotStarted
	}

	records := make([]*models.WatchRecord, 0, len(events))

	for _, event := range events {
		ec, record := s.prepare(ctx, event)
		if record == nil {
			record = s.run(ctx, ec)
		}

		records = append(records, record)
	}

	return records, nil
}

// prepare resolves the watch of a firing and registers the firing. A non-nil
// record means the firing already reached its final state.
func (s *Service) prepare(ctx context.Context, event models.TriggerEvent) (*Context, *models.WatchRecord) {
	executionTime := s.clock.Now()
	wid := NewWid(event.WatchID, NewNonce(), executionTime)

	watch, err := s.watches.Get(ctx, event.WatchID)
	if err != nil {
		ec := newContext(wid, nil, event, executionTime)

		if persistence.IsWatchNotFound(err) {
			return ec, s.finish(ctx, ec, models.ExecutionStateNotExecutedWatchMissing, "watch is not present in the store", nil)
		}

		return ec, s.finish(ctx, ec, models.ExecutionStateFailed, "failed to load watch: "+err.Error(), nil)
	}

	ec := newContext(wid, watch, event, executionTime)

	record := s.register(ctx, ec)

	return ec, record
}

func (s *Service) register(ctx context.Context, ec *Context) *models.WatchRecord {
	var err error

	if s.config.ConcurrencyPolicy == config.ConcurrencyAllow {
		err = s.current.Put(ec.wid, ec)
	} else {
		err = s.current.PutExclusive(ec.wid, ec)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSealed):
		return s.finish(ctx, ec, models.ExecutionStateFailed, MessageSealed, nil)
	case errors.Is(err, ErrAlreadyExecuting):
		return s.finish(ctx, ec, models.ExecutionStateExecutedMultipleTimes, "watch is already being executed", nil)
	default:
		return s.finish(ctx, ec, models.ExecutionStateFailed, err.Error(), nil)
	}
}

// run executes a registered firing and always deregisters it.
func (s *Service) run(ctx context.Context, ec *Context) *models.WatchRecord {
	defer s.current.Remove(ec.wid)

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "watcher.execute",
		attribute.String(otelhelper.WatchIDKey, ec.WatchID()),
		attribute.String(otelhelper.ExecutionIDKey, ec.wid.String()),
		attribute.String(otelhelper.TriggerTypeKey, string(ec.event.Type)),
		attribute.String(otelhelper.NodeIDKey, s.config.NodeID),
	)
	defer span.End()

	started := time.Now()
	result := &models.ExecutionResult{ExecutionTime: ec.executionTime}

	state, message := s.pipeline(ctx, ec, result)

	result.ExecutionDuration = models.Duration(time.Since(started))
	ec.setPhase(models.PhaseFinished)

	span.SetAttributes(attribute.String(otelhelper.ExecutionStateKey, string(state)))

	if state == models.ExecutionStateFailed {
		otelhelper.SetError(span, errors.New(message))
	}

	return s.finish(ctx, ec, state, message, result)
}

// pipeline turns every panic into a failed execution so one state is always reached.
func (s *Service) pipeline(ctx context.Context, ec *Context, result *models.ExecutionResult) (state models.ExecutionState, message string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "Watch execution panicked",
				"watch_id", ec.WatchID(), "wid", ec.wid.String(), "panic", r, "stack", string(debug.Stack()))

			state = models.ExecutionStateFailed
			message = fmt.Sprintf("execution panicked: %v", r)
		}
	}()

	ec.setPhase(models.PhaseStarted)

	watch := ec.watch
	now := s.clock.Now()

	if !ec.ignoreThrottle {
		if throttled, reason := s.throttler.Watch(watch, now); throttled {
			return models.ExecutionStateThrottled, reason
		}
	}

	ec.setPhase(models.PhaseInput)

	input, err := s.resolveInput(ctx, ec)
	result.Input = input

	if err != nil {
		s.logger.WarnContext(ctx, "Failed to execute watch input", "watch_id", ec.WatchID(), "wid", ec.wid.String(), "error", err)

		return models.ExecutionStateFailed, err.Error()
	}

	ec.setPhase(models.PhaseCondition)

	conditionResult, err := s.evaluateWatchCondition(ec)
	result.Condition = conditionResult

	if err != nil {
		s.logger.WarnContext(ctx, "Failed to execute watch condition", "watch_id", ec.WatchID(), "wid", ec.wid.String(), "error", err)

		return models.ExecutionStateFailed, err.Error()
	}

	ec.updateStatus(func(status *models.WatchStatus) {
		status.OnCheck(conditionResult.Met, now)
	})

	if !conditionResult.Met {
		return models.ExecutionStateExecutionNotNeeded, "condition not met"
	}

	if len(watch.Transform) > 0 {
		ec.setPhase(models.PhaseWatchTransform)

		transformResult, err := s.transform(ctx, watch.Transform, ec.Model())
		result.Transform = transformResult

		if err != nil {
			s.logger.WarnContext(ctx, "Failed to execute watch transform", "watch_id", ec.WatchID(), "wid", ec.wid.String(), "error", err)

			return models.ExecutionStateFailed, err.Error()
		}

		ec.setPayload(transformResult.Payload)
	}

	ec.setPhase(models.PhaseActions)

	executed := false

	for _, item := range watch.Actions {
		actionResult := s.executeAction(ctx, ec, item, now)
		result.Actions = append(result.Actions, actionResult)

		if actionResult.Status == models.StepSuccess || actionResult.Status == models.StepFailure {
			executed = true
		}
	}

	if executed {
		ec.updateStatus(func(status *models.WatchStatus) {
			status.OnExecuted(now)
		})
	}

	return models.ExecutionStateExecuted, ""
}

// finish builds the record of a firing, persists the status changes it made
// and hands the record to the history sink.
func (s *Service) finish(ctx context.Context, ec *Context, state models.ExecutionState, message string, result *models.ExecutionResult) *models.WatchRecord {
	record := &models.WatchRecord{
		ID:           ec.wid.String(),
		WatchID:      ec.WatchID(),
		NodeID:       s.config.NodeID,
		State:        state,
		TriggerEvent: ec.event,
		Message:      message,
		Result:       result,
		CreatedAt:    s.clock.Now(),
	}

	logger := s.logger.With("watch_id", record.WatchID, "wid", record.ID, "state", state)

	if ec.watch != nil {
		status := s.recordStatus(ctx, ec, state, logger)
		record.Status = &status
	}

	if ec.recordExecution {
		err := s.history.Write(ctx, record)
		if err != nil {
			logger.WarnContext(ctx, "Failed to write watch record", "error", err)
		}
	}

	if s.metrics != nil {
		took := time.Duration(0)
		if result != nil {
			took = result.ExecutionDuration.Std()
		}

		s.metrics.RecordExecution(ctx, record.WatchID, string(state), took)
	}

	if state == models.ExecutionStateFailed {
		logger.WarnContext(ctx, "Watch execution failed", "message", message)
	} else {
		logger.DebugContext(ctx, "Watch execution finished")
	}

	return record
}

func (s *Service) recordStatus(ctx context.Context, ec *Context, state models.ExecutionState, logger *slog.Logger) models.WatchStatus {
	ec.updateStatus(func(status *models.WatchStatus) {
		status.LastState = state
	})

	if !ec.recordExecution {
		return ec.watch.Status.Clone()
	}

	status, err := s.watches.UpdateStatus(ctx, ec.WatchID(), ec.applyStatusUpdates)
	if err != nil {
		logger.WarnContext(ctx, "Failed to update watch status", "error", err)

		return ec.watch.Status.Clone()
	}

	return status
}

// Ack acknowledges actions of a watch, all of them when none are named.
func (s *Service) Ack(ctx context.Context, watchID string, actionIDs ...string) (models.WatchStatus, error) {
	watch, err := s.watches.Get(ctx, watchID)
	if err != nil {
		return models.WatchStatus{}, err
	}

	known := watch.ActionIDs()
	for _, id := range actionIDs {
		if !slices.Contains(known, id) {
			return models.WatchStatus{}, fmt.Errorf("%w: watch [%s] has no action [%s]", ErrUnknownAction, watchID, id)
		}
	}

	now := s.clock.Now()

	status, err := s.watches.UpdateStatus(ctx, watchID, func(status *models.WatchStatus) {
		status.Ack(now, actionIDs...)
	})
	if err != nil {
		return models.WatchStatus{}, fmt.Errorf("failed to ack watch %s: %w", watchID, err)
	}

	s.logger.InfoContext(ctx, "Acknowledged watch actions", "watch_id", watchID, "action_ids", actionIDs)

	return status, nil
}

// Stats is a point-in-time view of the executor and the in-flight executions.
func (s *Service) Stats() models.Stats {
	queued := make([]models.QueuedWatch, 0)

	for _, task := range s.executor.QueuedTasks() {
		wt, ok := task.(*watchTask)
		if !ok {
			continue
		}

		queued = append(queued, models.QueuedWatch{
			WatchID:       wt.ctx.WatchID(),
			WatchRecordID: wt.ctx.wid.String(),
			TriggeredTime: wt.ctx.event.TriggeredTime,
			ExecutionTime: wt.ctx.executionTime,
		})
	}

	return models.Stats{
		Started:           s.started.Load(),
		QueueSize:         s.executor.QueueSize(),
		LargestPoolSize:   s.executor.LargestPoolSize(),
		ActiveCount:       s.executor.ActiveCount(),
		QueuedWatches:     queued,
		CurrentExecutions: s.current.Snapshots(),
	}
}

// CurrentExecutions exposes the tracker of in-flight executions.
func (s *Service) CurrentExecutions() *CurrentExecutions {
	return s.current
}

// watchTask is one queued firing.
type watchTask struct {
	service *Service
	ctx     *Context
	parent  context.Context
}

func (t *watchTask) Run() {
	t.service.run(t.parent, t.ctx)
}
