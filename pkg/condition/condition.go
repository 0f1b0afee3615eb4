// Package condition parses and evaluates watch conditions. A condition is a
// single-key object naming its type, e.g. {"compare": {"ctx.payload.total": {"gte": 5}}}.
package condition

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"time"
)

var ErrParse = errors.New("condition parse error")

// ParseError reports a condition that could not be parsed for a watch.
type ParseError struct {
	WatchID string
	Type    string
	Reason  string
	Err     error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("could not parse condition for watch [%s]", e.WatchID)
	if e.Type != "" {
		msg += fmt.Sprintf(": condition type [%s]", e.Type)
	}

	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}

	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Context is the view of an execution a condition evaluates against.
type Context interface {
	WatchID() string
	ExecutionTime() time.Time
	// Model is the document paths are resolved against; its root holds "ctx".
	Model() map[string]any
}

// Condition is the immutable, serializable description of a condition.
type Condition interface {
	Type() string
}

// Result is the outcome of evaluating a condition.
type Result struct {
	Type   string
	Met    bool
	Detail map[string]any
}

// Executable binds a condition to its evaluator. Execute must not mutate
// shared state and may be called repeatedly.
type Executable interface {
	Condition() Condition
	Execute(ctx Context) (Result, error)
}

// Factory parses and binds one condition type.
type Factory interface {
	Type() string
	Parse(watchID string, body json.RawMessage) (Condition, error)
	CreateExecutable(c Condition) (Executable, error)
}

// Registry resolves condition type names to factories. It is built once and
// never mutated afterwards.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry(factories ...Factory) (*Registry, error) {
	r := &Registry{factories: make(map[string]Factory, len(factories))}

	for _, factory := range factories {
		if _, exists := r.factories[factory.Type()]; exists {
			return nil, fmt.Errorf("condition type '%s' registered twice", factory.Type())
		}

		r.factories[factory.Type()] = factory
	}

	return r, nil
}

// NewDefaultRegistry registers every built-in condition type.
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(
		AlwaysFactory{},
		NeverFactory{},
		CompareFactory{},
		ArrayCompareFactory{},
		ScriptFactory{},
	)
	if err != nil {
		panic(err)
	}

	return r
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}

	sort.Strings(types)

	return types
}

// ParseCondition reads a single-key object whose key names the condition type.
func (r *Registry) ParseCondition(watchID string, raw json.RawMessage) (Condition, error) {
	conditionType, body, err := splitTyped(raw)
	if err != nil {
		return nil, &ParseError{WatchID: watchID, Reason: err.Error()}
	}

	factory, ok := r.factories[conditionType]
	if !ok {
		return nil, &ParseError{WatchID: watchID, Type: conditionType, Reason: "unknown condition type"}
	}

	condition, err := factory.Parse(watchID, body)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			return nil, err
		}

		return nil, &ParseError{WatchID: watchID, Type: conditionType, Err: err}
	}

	return condition, nil
}

// ParseExecutable parses the condition and binds it through its factory.
func (r *Registry) ParseExecutable(watchID string, raw json.RawMessage) (Executable, error) {
	condition, err := r.ParseCondition(watchID, raw)
	if err != nil {
		return nil, err
	}

	return r.Executable(watchID, condition)
}

// Executable binds an already parsed condition.
func (r *Registry) Executable(watchID string, c Condition) (Executable, error) {
	factory, ok := r.factories[c.Type()]
	if !ok {
		return nil, &ParseError{WatchID: watchID, Type: c.Type(), Reason: "unknown condition type"}
	}

	executable, err := factory.CreateExecutable(c)
	if err != nil {
		return nil, &ParseError{WatchID: watchID, Type: c.Type(), Err: err}
	}

	return executable, nil
}

// Equal reports whether two executables wrap equal conditions.
func Equal(a, b Executable) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return reflect.DeepEqual(a.Condition(), b.Condition())
}

// splitTyped unpacks {"<type>": <body>}.
func splitTyped(raw json.RawMessage) (string, json.RawMessage, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return "", nil, errors.New("no condition type found")
	}

	var object map[string]json.RawMessage

	err := json.Unmarshal(raw, &object)
	if err != nil {
		return "", nil, fmt.Errorf("expected an object: %w", err)
	}

	if len(object) == 0 {
		return "", nil, errors.New("no condition type found")
	}

	if len(object) > 1 {
		keys := make([]string, 0, len(object))
		for k := range object {
			keys = append(keys, k)
		}

		slices.Sort(keys)

		return "", nil, fmt.Errorf("expected a single condition type but found %v", keys)
	}

	for conditionType, body := range object {
		return conditionType, body, nil
	}

	return "", nil, errors.New("no condition type found")
}
