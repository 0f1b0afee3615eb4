package execution

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukex/watcher/pkg/condition"
	"github.com/dukex/watcher/pkg/models"
)

// Context is the state of one firing. It is owned by the goroutine running
// the firing; only the phase and the executed actions are read concurrently,
// by stats snapshots.
type Context struct {
	wid           Wid
	watch         *models.Watch
	event         models.TriggerEvent
	executionTime time.Time
	model         map[string]any

	ignoreCondition  bool
	ignoreThrottle   bool
	recordExecution  bool
	actionModes      map[string]models.ActionMode
	alternativeInput map[string]any

	phase atomic.Value

	mu              sync.Mutex
	executedActions []string
	statusUpdates   []func(status *models.WatchStatus)
}

var (
	_ condition.Context = (*Context)(nil)
	_ Execution         = (*Context)(nil)
)

func newContext(wid Wid, watch *models.Watch, event models.TriggerEvent, executionTime time.Time) *Context {
	c := &Context{
		wid:             wid,
		watch:           watch,
		event:           event,
		executionTime:   executionTime,
		recordExecution: true,
	}
	c.phase.Store(models.PhaseAwaitsExecution)
	c.model = map[string]any{"ctx": c.baseModel()}

	return c
}

func (c *Context) baseModel() map[string]any {
	ctx := map[string]any{
		"id":             c.wid.String(),
		"watch_id":       c.WatchID(),
		"execution_time": c.executionTime,
		"trigger": map[string]any{
			"type":           string(c.event.Type),
			"triggered_time": c.event.TriggeredTime,
			"scheduled_time": c.event.ScheduledTime,
			"data":           models.DeepCopyMap(c.event.Data),
		},
		"payload":  map[string]any{},
		"metadata": map[string]any{},
	}

	if c.watch != nil && c.watch.Metadata != nil {
		ctx["metadata"] = models.DeepCopyMap(c.watch.Metadata)
	}

	return ctx
}

func (c *Context) Wid() Wid {
	return c.wid
}

func (c *Context) WatchID() string {
	return c.wid.WatchID()
}

func (c *Context) ExecutionTime() time.Time {
	return c.executionTime
}

// Model is the document conditions, transforms and actions read. Its root key is "ctx".
func (c *Context) Model() map[string]any {
	return c.model
}

func (c *Context) Watch() *models.Watch {
	return c.watch
}

func (c *Context) Payload() map[string]any {
	payload, _ := c.model["ctx"].(map[string]any)["payload"].(map[string]any)

	return payload
}

func (c *Context) setPayload(payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}

	c.model["ctx"].(map[string]any)["payload"] = payload
}

// modelFor returns a model for one action: a copy of the current model with
// the action id and its own payload.
func (c *Context) modelFor(actionID string, payload map[string]any) map[string]any {
	ctx := maps.Clone(c.model["ctx"].(map[string]any))
	ctx["action_id"] = actionID
	ctx["payload"] = payload

	return map[string]any{"ctx": ctx}
}

func (c *Context) Phase() models.ExecutionPhase {
	return c.phase.Load().(models.ExecutionPhase)
}

func (c *Context) setPhase(phase models.ExecutionPhase) {
	c.phase.Store(phase)
}

func (c *Context) actionMode(actionID string) models.ActionMode {
	if mode, ok := c.actionModes[actionID]; ok {
		return mode
	}

	if mode, ok := c.actionModes[AllActions]; ok {
		return mode
	}

	return models.ActionModeExecute
}

func (c *Context) onActionExecuted(actionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.executedActions = append(c.executedActions, actionID)
}

// updateStatus queues a change to the watch status. Changes are applied to
// the stored status when the execution is recorded.
func (c *Context) updateStatus(update func(status *models.WatchStatus)) {
	update(&c.watch.Status)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.statusUpdates = append(c.statusUpdates, update)
}

func (c *Context) applyStatusUpdates(status *models.WatchStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, update := range c.statusUpdates {
		update(status)
	}
}

func (c *Context) Snapshot() models.ExecutionSnapshot {
	c.mu.Lock()
	executed := slices.Clone(c.executedActions)
	c.mu.Unlock()

	return models.ExecutionSnapshot{
		WatchID:         c.WatchID(),
		WatchRecordID:   c.wid.String(),
		TriggeredTime:   c.event.TriggeredTime,
		ExecutionTime:   c.executionTime,
		Phase:           c.Phase(),
		ExecutedActions: executed,
	}
}
