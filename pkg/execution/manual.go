package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/watcher/pkg/models"
)

// AllActions is the action mode key that applies to every action without its own mode.
const AllActions = "_all"

// InlineWatchID names watches that are executed without being stored.
const InlineWatchID = "_inlined_"

var ErrInvalidRequest = errors.New("invalid execute request")

// ExecuteRequest describes a manual execution. Either WatchID or Watch is set;
// an inline Watch is never stored and its executions are never recorded.
type ExecuteRequest struct {
	WatchID          string                       `json:"watch_id,omitempty"`
	Watch            *models.Watch                `json:"watch,omitempty"`
	TriggerData      map[string]any               `json:"trigger_data,omitempty"`
	IgnoreCondition  bool                         `json:"ignore_condition,omitempty"`
	IgnoreThrottle   bool                         `json:"ignore_throttle,omitempty"`
	AlternativeInput map[string]any               `json:"alternative_input,omitempty"`
	ActionModes      map[string]models.ActionMode `json:"action_modes,omitempty"`
	RecordExecution  bool                         `json:"record_execution,omitempty"`
}

// Execute runs one watch right away on the calling goroutine.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (*models.WatchRecord, error) {
	watch, err := s.requestedWatch(ctx, req)
	if err != nil {
		return nil, err
	}

	for actionID, mode := range req.ActionModes {
		if !mode.Valid() {
			return nil, fmt.Errorf("%w: unknown action mode [%s] for [%s]", ErrInvalidRequest, mode, actionID)
		}

		if actionID != AllActions && !hasAction(watch, actionID) {
			return nil, fmt.Errorf("%w: watch [%s] has no action [%s]", ErrUnknownAction, watch.ID, actionID)
		}
	}

	now := s.clock.Now()
	event := models.TriggerEvent{
		WatchID:       watch.ID,
		Type:          models.TriggerTypeManual,
		TriggeredTime: now,
		ScheduledTime: now,
		Data:          req.TriggerData,
	}

	ec := newContext(NewWid(watch.ID, NewNonce(), now), watch, event, now)
	ec.ignoreCondition = req.IgnoreCondition
	ec.ignoreThrottle = req.IgnoreThrottle
	ec.alternativeInput = req.AlternativeInput
	ec.actionModes = req.ActionModes
	ec.recordExecution = req.RecordExecution

	s.logger.InfoContext(ctx, "Executing watch manually", "watch_id", watch.ID, "wid", ec.wid.String())

	if record := s.register(ctx, ec); record != nil {
		return record, nil
	}

	return s.run(ctx, ec), nil
}

func (s *Service) requestedWatch(ctx context.Context, req ExecuteRequest) (*models.Watch, error) {
	switch {
	case req.Watch != nil && req.WatchID != "":
		return nil, fmt.Errorf("%w: watch id and inline watch are mutually exclusive", ErrInvalidRequest)
	case req.Watch != nil:
		if req.RecordExecution {
			return nil, fmt.Errorf("%w: executions of inline watches cannot be recorded", ErrInvalidRequest)
		}

		watch := req.Watch.Clone()
		if watch.ID == "" {
			watch.ID = InlineWatchID
		}

		return watch, nil
	case req.WatchID != "":
		return s.watches.Get(ctx, req.WatchID)
	default:
		return nil, fmt.Errorf("%w: a watch id or an inline watch is required", ErrInvalidRequest)
	}
}

func hasAction(watch *models.Watch, actionID string) bool {
	for _, action := range watch.Actions {
		if action.ID == actionID {
			return true
		}
	}

	return false
}
