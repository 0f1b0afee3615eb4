package condition

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/watcher/pkg/template"
)

const TypeArrayCompare = "array_compare"

// Quantifier decides how many array elements must satisfy the comparison.
type Quantifier string

const (
	QuantifierAll  Quantifier = "all"
	QuantifierSome Quantifier = "some"
)

// Eval applies op to every value. An empty array satisfies "all" and never "some".
func (q Quantifier) Eval(values []any, expected any, op Op) bool {
	switch q {
	case QuantifierAll:
		for _, v := range values {
			if !op.Eval(v, expected) {
				return false
			}
		}

		return true
	case QuantifierSome:
		for _, v := range values {
			if op.Eval(v, expected) {
				return true
			}
		}

		return false
	default:
		return false
	}
}

// ArrayCompareCondition compares the elements of the array at ArrayPath,
// optionally reading a nested ElementPath from each element.
type ArrayCompareCondition struct {
	ArrayPath   string
	ElementPath string
	Op          Op
	Value       any
	Quantifier  Quantifier
}

func (ArrayCompareCondition) Type() string { return TypeArrayCompare }

type ArrayCompareFactory struct{}

func (ArrayCompareFactory) Type() string { return TypeArrayCompare }

// Parse reads {"<array path>": {"path": "<element path>", "<op>": {"value": v, "quantifier": "all|some"}}}.
func (ArrayCompareFactory) Parse(_ string, body json.RawMessage) (Condition, error) {
	var arrays map[string]map[string]json.RawMessage

	err := json.Unmarshal(body, &arrays)
	if err != nil {
		return nil, fmt.Errorf("expected {\"<array path>\": {...}}: %w", err)
	}

	if len(arrays) != 1 {
		return nil, fmt.Errorf("expected exactly one array path but found %d", len(arrays))
	}

	for arrayPath, fields := range arrays {
		condition := ArrayCompareCondition{ArrayPath: arrayPath, Quantifier: QuantifierSome}

		opFound := false

		for name, raw := range fields {
			if name == "path" {
				err := json.Unmarshal(raw, &condition.ElementPath)
				if err != nil {
					return nil, fmt.Errorf("expected a string for [path]: %w", err)
				}

				continue
			}

			if opFound {
				return nil, fmt.Errorf("expected a single operator for array path [%s]", arrayPath)
			}

			op, err := parseOp(name)
			if err != nil {
				return nil, err
			}

			err = parseArrayOperand(raw, &condition)
			if err != nil {
				return nil, fmt.Errorf("operator [%s]: %w", name, err)
			}

			condition.Op = op
			opFound = true
		}

		if !opFound {
			return nil, fmt.Errorf("no comparison operator found for array path [%s]", arrayPath)
		}

		return condition, nil
	}

	return nil, errors.New("empty array_compare condition")
}

func parseArrayOperand(raw json.RawMessage, condition *ArrayCompareCondition) error {
	var operand map[string]json.RawMessage

	err := json.Unmarshal(raw, &operand)
	if err != nil {
		return fmt.Errorf("expected an object with [value]: %w", err)
	}

	value, ok := operand["value"]
	if !ok {
		return errors.New("missing required field [value]")
	}

	err = json.Unmarshal(value, &condition.Value)
	if err != nil {
		return fmt.Errorf("invalid [value]: %w", err)
	}

	err = validateOperand(condition.Value)
	if err != nil {
		return err
	}

	if quantifier, ok := operand["quantifier"]; ok {
		var q string

		err := json.Unmarshal(quantifier, &q)
		if err != nil {
			return fmt.Errorf("invalid [quantifier]: %w", err)
		}

		switch Quantifier(q) {
		case QuantifierAll, QuantifierSome:
			condition.Quantifier = Quantifier(q)
		default:
			return fmt.Errorf("unknown quantifier [%s]", q)
		}
	}

	for name := range operand {
		if name != "value" && name != "quantifier" {
			return fmt.Errorf("unexpected field [%s]", name)
		}
	}

	return nil
}

func (ArrayCompareFactory) CreateExecutable(c Condition) (Executable, error) {
	condition, ok := c.(ArrayCompareCondition)
	if !ok {
		return nil, fmt.Errorf("expected an array_compare condition, got %T", c)
	}

	return executableArrayCompare{condition: condition}, nil
}

type executableArrayCompare struct {
	condition ArrayCompareCondition
}

func (e executableArrayCompare) Condition() Condition { return e.condition }

func (e executableArrayCompare) Execute(ctx Context) (Result, error) {
	resolved := template.Lookup(ctx.Model(), e.condition.ArrayPath)

	array, ok := resolved.([]any)
	if !ok {
		return Result{Type: TypeArrayCompare}, fmt.Errorf("array path [%s] did not resolve to an array, got %T", e.condition.ArrayPath, resolved)
	}

	values := make([]any, len(array))
	for i, element := range array {
		values[i] = template.Lookup(element, e.condition.ElementPath)
	}

	expected, _ := resolveValue(e.condition.Value, ctx)

	return Result{
		Type: TypeArrayCompare,
		Met:  e.condition.Quantifier.Eval(values, expected, e.condition.Op),
		Detail: map[string]any{
			"resolved_values": map[string]any{e.condition.ArrayPath: values},
		},
	}, nil
}
