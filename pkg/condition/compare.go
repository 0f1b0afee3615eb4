package condition

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/watcher/pkg/template"
)

const TypeCompare = "compare"

// CompareCondition compares the value at Path with Value using Op.
type CompareCondition struct {
	Path  string
	Op    Op
	Value any
}

func (CompareCondition) Type() string { return TypeCompare }

type CompareFactory struct{}

func (CompareFactory) Type() string { return TypeCompare }

// Parse reads {"<path>": {"<op>": <value>}}.
func (CompareFactory) Parse(_ string, body json.RawMessage) (Condition, error) {
	var paths map[string]map[string]any

	err := json.Unmarshal(body, &paths)
	if err != nil {
		return nil, fmt.Errorf("expected {\"<path>\": {\"<op>\": <value>}}: %w", err)
	}

	if len(paths) != 1 {
		return nil, fmt.Errorf("expected exactly one path but found %d", len(paths))
	}

	for path, ops := range paths {
		if len(ops) != 1 {
			return nil, fmt.Errorf("expected exactly one operator for path [%s] but found %d", path, len(ops))
		}

		for opName, value := range ops {
			op, err := parseOp(opName)
			if err != nil {
				return nil, err
			}

			err = validateOperand(value)
			if err != nil {
				return nil, err
			}

			return CompareCondition{Path: path, Op: op, Value: value}, nil
		}
	}

	return nil, errors.New("empty compare condition")
}

func (CompareFactory) CreateExecutable(c Condition) (Executable, error) {
	compare, ok := c.(CompareCondition)
	if !ok {
		return nil, fmt.Errorf("expected a compare condition, got %T", c)
	}

	return executableCompare{condition: compare}, nil
}

type executableCompare struct {
	condition CompareCondition
}

func (e executableCompare) Condition() Condition { return e.condition }

func (e executableCompare) Execute(ctx Context) (Result, error) {
	resolvedValues := map[string]any{}

	actual := template.Lookup(ctx.Model(), e.condition.Path)
	resolvedValues[e.condition.Path] = actual

	expected, resolved := resolveValue(e.condition.Value, ctx)
	if resolved {
		resolvedValues[fmt.Sprint(e.condition.Value)] = expected
	}

	return Result{
		Type:   TypeCompare,
		Met:    e.condition.Op.Eval(actual, expected),
		Detail: map[string]any{"resolved_values": resolvedValues},
	}, nil
}
