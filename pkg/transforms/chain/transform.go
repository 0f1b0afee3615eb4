// Package chain provides the transform that applies a list of transforms in order.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/dukex/watcher/pkg/protocol"
)

// Builder builds a nested transform from its single-key definition.
type Builder func(raw json.RawMessage) (protocol.Transform, error)

type TransformFactory struct {
	build Builder
}

func NewTransformFactory(build Builder) *TransformFactory {
	return &TransformFactory{build: build}
}

func (*TransformFactory) ID() string {
	return "chain"
}

func (f *TransformFactory) Create(body json.RawMessage) (protocol.Transform, error) {
	var definitions []json.RawMessage

	err := json.Unmarshal(body, &definitions)
	if err != nil {
		return nil, fmt.Errorf("the chain transform expects a list of transforms: %w", err)
	}

	if len(definitions) == 0 {
		return nil, errors.New("the chain transform needs at least one transform")
	}

	transforms := make([]protocol.Transform, 0, len(definitions))

	for n, definition := range definitions {
		transform, err := f.build(definition)
		if err != nil {
			return nil, fmt.Errorf("chain element %d: %w", n, err)
		}

		transforms = append(transforms, transform)
	}

	return &Transform{Transforms: transforms}, nil
}

type Transform struct {
	Transforms []protocol.Transform
}

// Execute feeds the payload produced by each transform to the next one.
func (t *Transform) Execute(ctx context.Context, model map[string]any) (map[string]any, error) {
	var payload map[string]any

	current := model

	for n, transform := range t.Transforms {
		var err error

		payload, err = transform.Execute(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("chain element %d: %w", n, err)
		}

		current = withPayload(current, payload)
	}

	return payload, nil
}

func withPayload(model map[string]any, payload map[string]any) map[string]any {
	next := maps.Clone(model)
	if next == nil {
		next = map[string]any{}
	}

	ctx, _ := next["ctx"].(map[string]any)
	ctx = maps.Clone(ctx)

	if ctx == nil {
		ctx = map[string]any{}
	}

	ctx["payload"] = payload
	next["ctx"] = ctx

	return next
}
