// Package registry maps input, transform and action type names to their
// factories. Components are registered once at startup and only read afterwards.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukex/watcher/pkg/protocol"
)

var ErrNotRegistered = errors.New("component type not registered")

type Registry struct {
	logger             *slog.Logger
	actionFactories    map[string]protocol.ActionFactory
	inputFactories     map[string]protocol.InputFactory
	transformFactories map[string]protocol.TransformFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:             log,
		actionFactories:    make(map[string]protocol.ActionFactory),
		inputFactories:     make(map[string]protocol.InputFactory),
		transformFactories: make(map[string]protocol.TransformFactory),
	}
}

func (r *Registry) RegisterAction(actionFactory protocol.ActionFactory) {
	r.actionFactories[actionFactory.ID()] = actionFactory
	r.logger.Debug("Registered action", "type", actionFactory.ID())
}

func (r *Registry) RegisterInput(inputFactory protocol.InputFactory) {
	r.inputFactories[inputFactory.ID()] = inputFactory
	r.logger.Debug("Registered input", "type", inputFactory.ID())
}

func (r *Registry) RegisterTransform(transformFactory protocol.TransformFactory) {
	r.transformFactories[transformFactory.ID()] = transformFactory
	r.logger.Debug("Registered transform", "type", transformFactory.ID())
}

func (r *Registry) CreateAction(actionType string, config map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("action type '%s': %w", actionType, ErrNotRegistered)
	}

	if config == nil {
		config = map[string]any{}
	}

	return factory.Create(config)
}

// CreateInput builds an input from a single-key object such as {"simple": {...}}.
func (r *Registry) CreateInput(raw json.RawMessage) (protocol.Input, error) {
	inputType, body, err := SplitTyped(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	factory, ok := r.inputFactories[inputType]
	if !ok {
		return nil, fmt.Errorf("input type '%s': %w", inputType, ErrNotRegistered)
	}

	input, err := factory.Create(body)
	if err != nil {
		return nil, fmt.Errorf("invalid input '%s': %w", inputType, err)
	}

	return input, nil
}

// CreateTransform builds a transform from a single-key object such as {"script": "..."}.
func (r *Registry) CreateTransform(raw json.RawMessage) (protocol.Transform, error) {
	transformType, body, err := SplitTyped(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid transform: %w", err)
	}

	factory, ok := r.transformFactories[transformType]
	if !ok {
		return nil, fmt.Errorf("transform type '%s': %w", transformType, ErrNotRegistered)
	}

	transform, err := factory.Create(body)
	if err != nil {
		return nil, fmt.Errorf("invalid transform '%s': %w", transformType, err)
	}

	return transform, nil
}

func (r *Registry) ActionTypes() []string {
	return sortedKeys(r.actionFactories)
}

func (r *Registry) InputTypes() []string {
	return sortedKeys(r.inputFactories)
}

func (r *Registry) TransformTypes() []string {
	return sortedKeys(r.transformFactories)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}

// SplitTyped unpacks {"<type>": <body>}.
func SplitTyped(raw json.RawMessage) (string, json.RawMessage, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return "", nil, errors.New("no type found")
	}

	var object map[string]json.RawMessage

	err := json.Unmarshal(raw, &object)
	if err != nil {
		return "", nil, fmt.Errorf("expected an object: %w", err)
	}

	if len(object) != 1 {
		return "", nil, fmt.Errorf("expected a single type but found %d", len(object))
	}

	for componentType, body := range object {
		return componentType, body, nil
	}

	return "", nil, errors.New("no type found")
}
