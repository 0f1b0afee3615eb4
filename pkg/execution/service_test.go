package execution_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	log_action "github.com/dukex/watcher/pkg/actions/log"
	"github.com/dukex/watcher/pkg/clock"
	"github.com/dukex/watcher/pkg/condition"
	"github.com/dukex/watcher/pkg/config"
	"github.com/dukex/watcher/pkg/execution"
	"github.com/dukex/watcher/pkg/inputs/simple"
	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/otelhelper"
	"github.com/dukex/watcher/pkg/persistence/file"
	"github.com/dukex/watcher/pkg/protocol"
	"github.com/dukex/watcher/pkg/registry"
	"github.com/dukex/watcher/pkg/transforms/script"
	"github.com/dukex/watcher/pkg/watch"
)

// recordingAction counts its executions and can fail, panic or block.
type recordingAction struct {
	id      string
	fail    bool
	panics  bool
	block   chan struct{}
	started chan struct{}
	calls   atomic.Int32
}

func (a *recordingAction) ID() string {
	return a.id
}

func (a *recordingAction) Create(map[string]any) (protocol.Action, error) {
	return a, nil
}

func (a *recordingAction) Execute(_ context.Context, model map[string]any, _ *slog.Logger) (any, error) {
	a.calls.Add(1)

	if a.started != nil {
		a.started <- struct{}{}
	}

	if a.block != nil {
		<-a.block
	}

	if a.panics {
		panic("boom")
	}

	if a.fail {
		return nil, errors.New("action failed")
	}

	payload := model["ctx"].(map[string]any)["payload"]

	return map[string]any{"payload": payload}, nil
}

type captureSink struct {
	mu      sync.Mutex
	records []*models.WatchRecord
	err     error
}

func (s *captureSink) Write(_ context.Context, record *models.WatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)

	return s.err
}

func (s *captureSink) Records() []*models.WatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*models.WatchRecord(nil), s.records...)
}

type fixture struct {
	service  *execution.Service
	store    *watch.Store
	sink     *captureSink
	clock    *clock.Mock
	action   *recordingAction
	failing  *recordingAction
	panicing *recordingAction
}

func newFixture(t *testing.T, configure ...func(*config.Engine)) *fixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	cfg := config.DefaultEngine()
	cfg.PoolSize = 4
	cfg.DrainTimeout = time.Second

	for _, c := range configure {
		c(&cfg)
	}

	f := &fixture{
		store:    watch.NewStore(logger, file.NewPersistence(t.TempDir())),
		sink:     &captureSink{},
		clock:    clock.NewMock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
		action:   &recordingAction{id: "record"},
		failing:  &recordingAction{id: "failing", fail: true},
		panicing: &recordingAction{id: "panicking", panics: true},
	}

	components := registry.NewRegistry(logger)
	components.RegisterAction(log_action.NewLogActionFactory())
	components.RegisterAction(f.action)
	components.RegisterAction(f.failing)
	components.RegisterAction(f.panicing)
	components.RegisterInput(simple.NewInputFactory())
	components.RegisterTransform(script.NewTransformFactory())

	f.service = execution.NewService(logger, cfg, f.store, condition.NewDefaultRegistry(), components, f.sink,
		execution.WithClock(f.clock))
	f.service.Start()

	t.Cleanup(func() {
		_ = f.service.Stop(context.Background())
	})

	return f
}

func (f *fixture) put(t *testing.T, w *models.Watch) {
	t.Helper()

	_, err := f.store.Put(context.Background(), w)
	require.NoError(t, err)
}

func (f *fixture) fire(t *testing.T, watchID string) *models.WatchRecord {
	t.Helper()

	records, err := f.service.ProcessEventsSync(context.Background(), []models.TriggerEvent{f.event(watchID)})
	require.NoError(t, err)
	require.Len(t, records, 1)

	return records[0]
}

func (f *fixture) event(watchID string) models.TriggerEvent {
	now := f.clock.Now()

	return models.TriggerEvent{WatchID: watchID, Type: models.TriggerTypeSchedule, TriggeredTime: now, ScheduledTime: now}
}

func simpleWatch(id, conditionJSON string, actions ...models.ActionItem) *models.Watch {
	return &models.Watch{
		ID:        id,
		Input:     json.RawMessage(`{"simple": {"total": 7, "status": "red"}}`),
		Condition: json.RawMessage(conditionJSON),
		Actions:   actions,
	}
}

func TestService_AlwaysConditionExecutes(t *testing.T) {
	f := newFixture(t)
	f.put(t, simpleWatch("w1", `{"always": {}}`,
		models.ActionItem{ID: "log", Type: "log", Config: map[string]any{"message": "total {{ .ctx.payload.total }}"}}))

	record := f.fire(t, "w1")

	assert.Equal(t, models.ExecutionStateExecuted, record.State)
	assert.Equal(t, 0, f.service.CurrentExecutions().Len())

	require.NotNil(t, record.Result)
	require.Len(t, record.Result.Actions, 1)
	assert.Equal(t, models.StepSuccess, record.Result.Actions[0].Status)
	assert.Equal(t, "total 7", record.Result.Actions[0].Output["message"])

	_, err := execution.ParseWid(record.ID)
	require.NoError(t, err)

	stored, err := f.store.Get(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStateExecuted, stored.Status.LastState)
	assert.NotNil(t, stored.Status.LastExecuted)
	assert.Equal(t, models.AckAckable, stored.Status.Actions["log"].AckState)
	assert.Positive(t, stored.Status.Version)

	assert.Len(t, f.sink.Records(), 1)
}

func TestService_ProcessEventsAsync(t *testing.T) {
	f := newFixture(t)
	f.put(t, simpleWatch("w1", `{"always": {}}`, models.ActionItem{ID: "a", Type: "record"}))

	err := f.service.ProcessEventsAsync(context.Background(), []models.TriggerEvent{f.event("w1")})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(f.sink.Records()) == 1 && f.service.CurrentExecutions().Len() == 0
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, models.ExecutionStateExecuted, f.sink.Records()[0].State)
	assert.Equal(t, int32(1), f.action.calls.Load())
}

func TestService_MissingWatch(t *testing.T) {
	f := newFixture(t)

	record := f.fire(t, "w2")

	assert.Equal(t, models.ExecutionStateNotExecutedWatchMissing, record.State)
	assert.Nil(t, record.Status)
	assert.Nil(t, record.Result)
	assert.Equal(t, 0, f.service.CurrentExecutions().Len())
	assert.Len(t, f.sink.Records(), 1)
}

func TestService_ConditionNotMet(t *testing.T) {
	f := newFixture(t)
	f.put(t, simpleWatch("w3", `{"never": {}}`, models.ActionItem{ID: "a", Type: "record"}))

	record := f.fire(t, "w3")

	assert.Equal(t, models.ExecutionStateExecutionNotNeeded, record.State)
	assert.Equal(t, int32(0), f.action.calls.Load())
	assert.Empty(t, record.Result.Actions)
	assert.False(t, record.Result.Condition.Met)

	stored, err := f.store.Get(context.Background(), "w3")
	require.NoError(t, err)
	assert.NotNil(t, stored.Status.LastChecked)
	assert.Nil(t, stored.Status.LastExecuted)
}

func TestService_ThrottledWithinPeriod(t *testing.T) {
	f := newFixture(t)
	f.put(t, simpleWatch("w4", `{"always": {}}`, models.ActionItem{ID: "a", Type: "record"}))

	first := f.fire(t, "w4")
	assert.Equal(t, models.ExecutionStateExecuted, first.State)

	f.clock.Advance(time.Second)

	second := f.fire(t, "w4")
	assert.Equal(t, models.ExecutionStateThrottled, second.State)
	assert.Contains(t, second.Message, "throttling interval")
	assert.Equal(t, int32(1), f.action.calls.Load())
	assert.Equal(t, 0, f.service.CurrentExecutions().Len())

	f.clock.Advance(10 * time.Second)

	third := f.fire(t, "w4")
	assert.Equal(t, models.ExecutionStateExecuted, third.State)
	assert.Equal(t, int32(2), f.action.calls.Load())
}

func TestService_PipelineFailures(t *testing.T) {
	tests := []struct {
		name    string
		watch   *models.Watch
		message string
	}{
		{
			name:    "unknown input type",
			watch:   &models.Watch{ID: "w", Input: json.RawMessage(`{"nope": {}}`), Condition: json.RawMessage(`{"always": {}}`)},
			message: "failed to create input",
		},
		{
			name:    "unknown condition type",
			watch:   simpleWatch("w", `{"sometimes": {}}`),
			message: "sometimes",
		},
		{
			name: "failing transform",
			watch: &models.Watch{
				ID:        "w",
				Condition: json.RawMessage(`{"always": {}}`),
				Transform: json.RawMessage(`{"script": "{{ .ctx.payload.missing.deeper }"}`),
			},
			message: "transform",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.put(t, tt.watch)

			record := f.fire(t, "w")

			assert.Equal(t, models.ExecutionStateFailed, record.State)
			assert.Contains(t, record.Message, tt.message)
			assert.Equal(t, 0, f.service.CurrentExecutions().Len())
		})
	}
}

func TestService_ActionFailuresDoNotStopSiblings(t *testing.T) {
	f := newFixture(t)
	f.put(t, simpleWatch("w1", `{"always": {}}`,
		models.ActionItem{ID: "first", Type: "failing"},
		models.ActionItem{ID: "second", Type: "panicking"},
		models.ActionItem{ID: "third", Type: "record"},
		models.ActionItem{ID: "fourth", Type: "unregistered"},
	))

	record := f.fire(t, "w1")

	assert.Equal(t, models.ExecutionStateExecuted, record.State)
	require.Len(t, record.Result.Actions, 4)

	statuses := make([]models.StepStatus, 0, 4)
	for _, action := range record.Result.Actions {
		statuses = append(statuses, action.Status)
	}

	assert.Equal(t, []models.StepStatus{models.StepFailure, models.StepFailure, models.StepSuccess, models.StepFailure}, statuses)
	assert.Contains(t, record.Result.Actions[1].Reason, "panicked")
	assert.Equal(t, int32(1), f.action.calls.Load())

	stored, err := f.store.Get(context.Background(), "w1")
	require.NoError(t, err)
	assert.False(t, stored.Status.Actions["first"].LastExecution.Successful)
	assert.True(t, stored.Status.Actions["third"].LastExecution.Successful)
}

func TestService_TransformsAndActionConditions(t *testing.T) {
	f := newFixture(t)
	f.put(t, &models.Watch{
		ID:        "w1",
		Input:     json.RawMessage(`{"simple": {"total": 7}}`),
		Condition: json.RawMessage(`{"compare": {"ctx.payload.total": {"gte": 5}}}`),
		Transform: json.RawMessage(`{"script": "{\"doubled\": \"{{ .ctx.payload.total }}{{ .ctx.payload.total }}\"}"}`),
		Actions: []models.ActionItem{
			{ID: "matching", Type: "record", Condition: json.RawMessage(`{"compare": {"ctx.payload.doubled": {"eq": "77"}}}`)},
			{ID: "not-matching", Type: "record", Condition: json.RawMessage(`{"compare": {"ctx.payload.doubled": {"eq": "1"}}}`)},
			{ID: "own-transform", Type: "record", Transform: json.RawMessage(`{"script": "{\"action\": \"{{ .ctx.action_id }}\"}"}`)},
		},
	})

	record := f.fire(t, "w1")

	require.Equal(t, models.ExecutionStateExecuted, record.State)
	assert.Equal(t, map[string]any{"doubled": "77"}, record.Result.Transform.Payload)

	actions := record.Result.Actions
	require.Len(t, actions, 3)
	assert.Equal(t, models.StepSuccess, actions[0].Status)
	assert.Equal(t, models.StepConditionFailed, actions[1].Status)
	assert.Equal(t, models.StepSuccess, actions[2].Status)
	assert.Equal(t, map[string]any{"action": "own-transform"}, actions[2].Output["payload"])
	assert.Equal(t, int32(2), f.action.calls.Load())
}

func TestService_SingleFlight(t *testing.T) {
	tests := []struct {
		name     string
		policy   config.ConcurrencyPolicy
		expected models.ExecutionState
	}{
		{name: "reject", policy: config.ConcurrencyReject, expected: models.ExecutionStateExecutedMultipleTimes},
		{name: "allow", policy: config.ConcurrencyAllow, expected: models.ExecutionStateExecuted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(cfg *config.Engine) {
				cfg.ConcurrencyPolicy = tt.policy
				cfg.DefaultThrottlePeriod = 0
			})

			f.action.block = make(chan struct{})
			f.action.started = make(chan struct{}, 2)
			f.put(t, simpleWatch("w1", `{"always": {}}`, models.ActionItem{ID: "a", Type: "record"}))

			require.NoError(t, f.service.ProcessEventsAsync(context.Background(), []models.TriggerEvent{f.event("w1")}))

			select {
			case <-f.action.started:
			case <-time.After(5 * time.Second):
				t.Fatal("first execution did not start")
			}

			snapshots := f.service.Stats().CurrentExecutions
			require.Len(t, snapshots, 1)
			assert.Equal(t, models.PhaseActions, snapshots[0].Phase)

			done := make(chan *models.WatchRecord, 1)

			go func() {
				records, err := f.service.ProcessEventsSync(context.Background(), []models.TriggerEvent{f.event("w1")})
				assert.NoError(t, err)

				done <- records[0]
			}()

			var record *models.WatchRecord

			if tt.policy == config.ConcurrencyAllow {
				<-f.action.started
				close(f.action.block)
				record = awaitRecord(t, done)
			} else {
				// The first firing stays blocked until the second one is rejected.
				record = awaitRecord(t, done)
				close(f.action.block)
			}

			assert.Equal(t, tt.expected, record.State)

			assert.Eventually(t, func() bool {
				return f.service.CurrentExecutions().Len() == 0
			}, 5*time.Second, 10*time.Millisecond)
		})
	}
}

func awaitRecord(t *testing.T, done <-chan *models.WatchRecord) *models.WatchRecord {
	t.Helper()

	select {
	case record := <-done:
		return record
	case <-time.After(5 * time.Second):
		t.Fatal("second firing did not finish")

		return nil
	}
}

func TestService_ExactlyOneStatePerFiring(t *testing.T) {
	f := newFixture(t)
	f.put(t, simpleWatch("met", `{"always": {}}`, models.ActionItem{ID: "a", Type: "record"}))
	f.put(t, simpleWatch("not-met", `{"never": {}}`))
	f.put(t, simpleWatch("broken", `{"compare": {"ctx.payload.total": {"gte": "{{ctx.payload.nope"}}}`))

	var events []models.TriggerEvent

	for i := range 30 {
		watchID := []string{"met", "not-met", "broken", "missing"}[i%4]
		events = append(events, f.event(watchID))
	}

	require.NoError(t, f.service.ProcessEventsAsync(context.Background(), events))

	assert.Eventually(t, func() bool {
		return len(f.sink.Records()) == len(events) && f.service.CurrentExecutions().Len() == 0
	}, 5*time.Second, 10*time.Millisecond)

	ids := map[string]bool{}

	for _, record := range f.sink.Records() {
		assert.True(t, record.State.Valid(), "unexpected state %q", record.State)
		assert.False(t, ids[record.ID], "record %s written twice", record.ID)

		ids[record.ID] = true
	}

	assert.Len(t, ids, len(events))
}

func TestService_HistoryFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("history unavailable")
	f.put(t, simpleWatch("w1", `{"always": {}}`))

	record := f.fire(t, "w1")

	assert.Equal(t, models.ExecutionStateExecuted, record.State)
}

func TestService_NotStarted(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.service.Stop(context.Background()))

	err := f.service.ProcessEventsAsync(context.Background(), []models.TriggerEvent{f.event("w1")})
	require.ErrorIs(t, err, execution.ErrNotStarted)

	_, err = f.service.ProcessEventsSync(context.Background(), []models.TriggerEvent{f.event("w1")})
	require.ErrorIs(t, err, execution.ErrNotStarted)
}

func TestService_ExecuteAfterStopIsSealed(t *testing.T) {
	f := newFixture(t)
	f.put(t, simpleWatch("w1", `{"always": {}}`, models.ActionItem{ID: "a", Type: "record"}))
	require.NoError(t, f.service.Stop(context.Background()))

	record, err := f.service.Execute(context.Background(), execution.ExecuteRequest{WatchID: "w1", RecordExecution: true})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStateFailed, record.State)
	assert.Equal(t, execution.MessageSealed, record.Message)
	assert.Equal(t, int32(0), f.action.calls.Load())
}

func TestService_RestartAfterStop(t *testing.T) {
	f := newFixture(t)
	f.put(t, simpleWatch("w1", `{"always": {}}`, models.ActionItem{ID: "a", Type: "record"}))

	require.NoError(t, f.service.Stop(context.Background()))
	f.service.Start()

	require.NoError(t, f.service.ProcessEventsAsync(context.Background(), []models.TriggerEvent{f.event("w1")}))

	assert.Eventually(t, func() bool {
		return len(f.sink.Records()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	record := f.sink.Records()[0]
	assert.Equal(t, models.ExecutionStateExecuted, record.State, record.Message)
	assert.Equal(t, int32(1), f.action.calls.Load())
}

func TestService_StopWaitsForRunningExecutions(t *testing.T) {
	f := newFixture(t)
	f.action.block = make(chan struct{})
	f.action.started = make(chan struct{}, 1)
	f.put(t, simpleWatch("w1", `{"always": {}}`, models.ActionItem{ID: "a", Type: "record"}))

	require.NoError(t, f.service.ProcessEventsAsync(context.Background(), []models.TriggerEvent{f.event("w1")}))
	<-f.action.started

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(f.action.block)
	}()

	require.NoError(t, f.service.Stop(context.Background()))

	assert.Equal(t, 0, f.service.CurrentExecutions().Len())
	assert.Len(t, f.sink.Records(), 1)
}

func TestService_ExecuteModes(t *testing.T) {
	tests := []struct {
		name     string
		modes    map[string]models.ActionMode
		expected models.StepStatus
		calls    int32
	}{
		{name: "simulate all", modes: map[string]models.ActionMode{execution.AllActions: models.ActionModeSimulate}, expected: models.StepSimulated, calls: 0},
		{name: "skip one", modes: map[string]models.ActionMode{"a": models.ActionModeSkip}, expected: models.StepSkipped, calls: 0},
		{name: "execute", modes: nil, expected: models.StepSuccess, calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.put(t, simpleWatch("w1", `{"never": {}}`, models.ActionItem{ID: "a", Type: "record"}))

			record, err := f.service.Execute(context.Background(), execution.ExecuteRequest{
				WatchID:         "w1",
				IgnoreCondition: true,
				ActionModes:     tt.modes,
			})
			require.NoError(t, err)

			assert.Equal(t, models.ExecutionStateExecuted, record.State)
			require.Len(t, record.Result.Actions, 1)
			assert.Equal(t, tt.expected, record.Result.Actions[0].Status)
			assert.Equal(t, tt.calls, f.action.calls.Load())
			assert.Empty(t, f.sink.Records())

			stored, err := f.store.Get(context.Background(), "w1")
			require.NoError(t, err)
			assert.Zero(t, stored.Status.Version)
		})
	}
}

func TestService_ExecuteInvalidRequests(t *testing.T) {
	f := newFixture(t)
	f.put(t, simpleWatch("w1", `{"always": {}}`, models.ActionItem{ID: "a", Type: "record"}))

	tests := []struct {
		name string
		req  execution.ExecuteRequest
		err  error
	}{
		{name: "nothing to execute", req: execution.ExecuteRequest{}, err: execution.ErrInvalidRequest},
		{name: "both id and watch", req: execution.ExecuteRequest{WatchID: "w1", Watch: &models.Watch{}}, err: execution.ErrInvalidRequest},
		{name: "record inline watch", req: execution.ExecuteRequest{Watch: &models.Watch{}, RecordExecution: true}, err: execution.ErrInvalidRequest},
		{name: "unknown mode", req: execution.ExecuteRequest{WatchID: "w1", ActionModes: map[string]models.ActionMode{"a": "later"}}, err: execution.ErrInvalidRequest},
		{name: "unknown action", req: execution.ExecuteRequest{WatchID: "w1", ActionModes: map[string]models.ActionMode{"b": models.ActionModeSkip}}, err: execution.ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Execute(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestService_ExecuteInlineWatchWithAlternativeInput(t *testing.T) {
	f := newFixture(t)

	record, err := f.service.Execute(context.Background(), execution.ExecuteRequest{
		Watch: &models.Watch{
			Condition: json.RawMessage(`{"compare": {"ctx.payload.count": {"gt": 1}}}`),
			Actions:   []models.ActionItem{{ID: "a", Type: "record"}},
		},
		AlternativeInput: map[string]any{"count": 2},
	})
	require.NoError(t, err)

	assert.Equal(t, execution.InlineWatchID, record.WatchID)
	assert.Equal(t, models.ExecutionStateExecuted, record.State)
	assert.Equal(t, "alternative", record.Result.Input.Type)
	assert.Equal(t, int32(1), f.action.calls.Load())
}

func TestService_Ack(t *testing.T) {
	f := newFixture(t, func(cfg *config.Engine) {
		cfg.DefaultThrottlePeriod = 0
	})
	f.put(t, &models.Watch{
		ID:        "w1",
		Condition: json.RawMessage(`{"compare": {"ctx.payload.count": {"gt": 1}}}`),
		Actions:   []models.ActionItem{{ID: "a", Type: "record"}},
	})

	execute := func(count int) *models.WatchRecord {
		record, err := f.service.Execute(context.Background(), execution.ExecuteRequest{
			WatchID:          "w1",
			AlternativeInput: map[string]any{"count": count},
			RecordExecution:  true,
		})
		require.NoError(t, err)

		return record
	}

	record := execute(2)
	assert.Equal(t, models.StepSuccess, record.Result.Actions[0].Status)

	status, err := f.service.Ack(context.Background(), "w1", "a")
	require.NoError(t, err)
	assert.Equal(t, models.AckAcked, status.Actions["a"].AckState)

	record = execute(2)
	assert.Equal(t, models.StepThrottled, record.Result.Actions[0].Status)
	assert.Equal(t, int32(1), f.action.calls.Load())

	record = execute(0)
	assert.Equal(t, models.ExecutionStateExecutionNotNeeded, record.State)
	assert.Equal(t, models.AckAwaitsSuccessfulExecution, record.Status.Actions["a"].AckState)

	record = execute(2)
	assert.Equal(t, models.StepSuccess, record.Result.Actions[0].Status)
	assert.Equal(t, int32(2), f.action.calls.Load())

	_, err = f.service.Ack(context.Background(), "w1", "unknown")
	require.ErrorIs(t, err, execution.ErrUnknownAction)
}

func TestService_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := otelhelper.NewExecutionMetrics(provider.Meter("test"))
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)
	store := watch.NewStore(logger, file.NewPersistence(t.TempDir()))
	service := execution.NewService(logger, config.DefaultEngine(), store, condition.NewDefaultRegistry(),
		registry.NewRegistry(logger), nil, execution.WithMetrics(metrics))
	service.Start()

	defer func() {
		_ = service.Stop(context.Background())
	}()

	for i := range 3 {
		_, err := service.ProcessEventsSync(context.Background(), []models.TriggerEvent{{WatchID: fmt.Sprintf("missing-%d", i)}})
		require.NoError(t, err)
	}

	var data metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &data))
	require.Len(t, data.ScopeMetrics, 1)

	var total int64

	for _, m := range data.ScopeMetrics[0].Metrics {
		if sum, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == "watcher.executions" {
			for _, point := range sum.DataPoints {
				total += point.Value
			}
		}
	}

	assert.Equal(t, int64(3), total)
}
