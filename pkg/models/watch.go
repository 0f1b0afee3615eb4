// Package models defines the persisted and exchanged data of the watcher: watch
// definitions, their status, trigger events and execution records.
package models

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// Watch is the persisted definition of a watch. Input, condition and transform
// are kept as raw single-key objects ({"<type>": {...}}) and parsed by their
// registries when the watch is loaded.
type Watch struct {
	ID             string          `json:"id"                        validate:"required"`
	Name           string          `json:"name,omitempty"`
	Description    string          `json:"description,omitempty"`
	Trigger        Trigger         `json:"trigger"`
	Input          json.RawMessage `json:"input,omitempty"`
	Condition      json.RawMessage `json:"condition,omitempty"`
	Transform      json.RawMessage `json:"transform,omitempty"`
	Actions        []ActionItem    `json:"actions,omitempty"         validate:"dive"`
	ThrottlePeriod *Duration       `json:"throttle_period,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	Status         WatchStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so executions never observe concurrent edits.
func (w *Watch) Clone() *Watch {
	if w == nil {
		return nil
	}

	clone := *w
	clone.Trigger = w.Trigger.clone()
	clone.Input = slices.Clone(w.Input)
	clone.Condition = slices.Clone(w.Condition)
	clone.Transform = slices.Clone(w.Transform)
	clone.Metadata = deepCopyMap(w.Metadata)
	clone.Status = w.Status.Clone()

	if w.ThrottlePeriod != nil {
		period := *w.ThrottlePeriod
		clone.ThrottlePeriod = &period
	}

	if w.Actions != nil {
		clone.Actions = make([]ActionItem, len(w.Actions))
		for i, action := range w.Actions {
			clone.Actions[i] = action.clone()
		}
	}

	return &clone
}

// ActionIDs returns the ids of the watch actions in declaration order.
func (w *Watch) ActionIDs() []string {
	ids := make([]string, 0, len(w.Actions))
	for _, action := range w.Actions {
		ids = append(ids, action.ID)
	}

	return ids
}

func deepCopyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}

	return dst
}

func deepCopyValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return deepCopyMap(value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = deepCopyValue(item)
		}

		return out
	case map[string]string:
		return maps.Clone(value)
	case []string:
		return slices.Clone(value)
	default:
		return value
	}
}

// DeepCopyMap copies nested maps and slices of a JSON-like document.
func DeepCopyMap(src map[string]any) map[string]any {
	return deepCopyMap(src)
}
