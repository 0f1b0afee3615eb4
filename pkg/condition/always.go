package condition

import (
	"encoding/json"
	"fmt"
)

const (
	TypeAlways = "always"
	TypeNever  = "never"
)

type AlwaysCondition struct{}

func (AlwaysCondition) Type() string { return TypeAlways }

type NeverCondition struct{}

func (NeverCondition) Type() string { return TypeNever }

type AlwaysFactory struct{}

func (AlwaysFactory) Type() string { return TypeAlways }

func (AlwaysFactory) Parse(_ string, body json.RawMessage) (Condition, error) {
	err := expectEmptyObject(body)
	if err != nil {
		return nil, err
	}

	return AlwaysCondition{}, nil
}

func (AlwaysFactory) CreateExecutable(c Condition) (Executable, error) {
	return constant{condition: c, met: true}, nil
}

type NeverFactory struct{}

func (NeverFactory) Type() string { return TypeNever }

func (NeverFactory) Parse(_ string, body json.RawMessage) (Condition, error) {
	err := expectEmptyObject(body)
	if err != nil {
		return nil, err
	}

	return NeverCondition{}, nil
}

func (NeverFactory) CreateExecutable(c Condition) (Executable, error) {
	return constant{condition: c, met: false}, nil
}

type constant struct {
	condition Condition
	met       bool
}

func (c constant) Condition() Condition { return c.condition }

func (c constant) Execute(Context) (Result, error) {
	return Result{Type: c.condition.Type(), Met: c.met}, nil
}

func expectEmptyObject(body json.RawMessage) error {
	if len(body) == 0 || string(body) == "null" {
		return nil
	}

	var object map[string]json.RawMessage

	err := json.Unmarshal(body, &object)
	if err != nil {
		return fmt.Errorf("expected an empty object: %w", err)
	}

	if len(object) > 0 {
		return fmt.Errorf("expected an empty object but found %d fields", len(object))
	}

	return nil
}
