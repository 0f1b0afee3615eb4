// Package web provides the HTTP API of the watch execution engine.
package web

import (
	"github.com/dukex/watcher/pkg/execution"
	"github.com/dukex/watcher/pkg/models"
)

// ExecuteWatchRequest is the body of POST /watches/:id/_execute. Executions
// run in simulate mode unless action modes say otherwise.
type ExecuteWatchRequest struct {
	TriggerData      map[string]any    `json:"trigger_data,omitempty"`
	IgnoreCondition  bool              `json:"ignore_condition"`
	IgnoreThrottle   bool              `json:"ignore_throttle"`
	AlternativeInput map[string]any    `json:"alternative_input,omitempty"`
	ActionModes      map[string]string `json:"action_modes,omitempty"      validate:"omitempty,dive,keys,required,endkeys,oneof=execute force_execute simulate force_simulate skip"`
	RecordExecution  bool              `json:"record_execution"`
}

// ExecuteRequest converts the body into a manual execution of watchID.
func (r ExecuteWatchRequest) ExecuteRequest(watchID string) execution.ExecuteRequest {
	modes := make(map[string]models.ActionMode, len(r.ActionModes))
	for id, mode := range r.ActionModes {
		modes[id] = models.ActionMode(mode)
	}

	if len(modes) == 0 {
		modes[execution.AllActions] = models.ActionModeSimulate
	}

	return execution.ExecuteRequest{
		WatchID:          watchID,
		TriggerData:      r.TriggerData,
		IgnoreCondition:  r.IgnoreCondition,
		IgnoreThrottle:   r.IgnoreThrottle,
		AlternativeInput: r.AlternativeInput,
		ActionModes:      modes,
		RecordExecution:  r.RecordExecution,
	}
}

// AckRequest is the body of POST /watches/:id/_ack. No action ids acks every action.
type AckRequest struct {
	ActionIDs []string `json:"action_ids" validate:"dive,required"`
}

// TriggerRequest is the body of POST /watches/:id/_trigger.
type TriggerRequest struct {
	Data map[string]any `json:"data,omitempty"`
}

// HistoryResponse lists the newest records of a watch.
type HistoryResponse struct {
	WatchID string                `json:"watch_id"`
	Records []*models.WatchRecord `json:"records"`
}
