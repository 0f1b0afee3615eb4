package models

import (
	"encoding/json"
	"slices"
)

// ActionItem is one configured action of a watch. Condition and transform are
// optional and scoped to this action only.
type ActionItem struct {
	ID             string          `json:"id"                        validate:"required"`
	Type           string          `json:"type"                      validate:"required"`
	Config         map[string]any  `json:"config,omitempty"`
	Condition      json.RawMessage `json:"condition,omitempty"`
	Transform      json.RawMessage `json:"transform,omitempty"`
	ThrottlePeriod *Duration       `json:"throttle_period,omitempty"`
}

func (a ActionItem) clone() ActionItem {
	clone := a
	clone.Config = deepCopyMap(a.Config)
	clone.Condition = slices.Clone(a.Condition)
	clone.Transform = slices.Clone(a.Transform)

	if a.ThrottlePeriod != nil {
		period := *a.ThrottlePeriod
		clone.ThrottlePeriod = &period
	}

	return clone
}

// ActionMode controls how an action is run within one execution.
type ActionMode string

const (
	// ActionModeExecute runs the action unless throttled.
	ActionModeExecute ActionMode = "execute"
	// ActionModeForceExecute runs the action ignoring throttling and acks.
	ActionModeForceExecute ActionMode = "force_execute"
	// ActionModeSimulate produces the action output without side effects, unless throttled.
	ActionModeSimulate ActionMode = "simulate"
	// ActionModeForceSimulate simulates ignoring throttling.
	ActionModeForceSimulate ActionMode = "force_simulate"
	// ActionModeSkip skips the action entirely.
	ActionModeSkip ActionMode = "skip"
)

func (m ActionMode) Valid() bool {
	switch m {
	case ActionModeExecute, ActionModeForceExecute, ActionModeSimulate, ActionModeForceSimulate, ActionModeSkip:
		return true
	default:
		return false
	}
}

func (m ActionMode) Force() bool {
	return m == ActionModeForceExecute || m == ActionModeForceSimulate
}

func (m ActionMode) Simulate() bool {
	return m == ActionModeSimulate || m == ActionModeForceSimulate
}
