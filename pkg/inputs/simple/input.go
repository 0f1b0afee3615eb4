// Package simple provides the input that loads a static payload.
package simple

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukex/watcher/pkg/models"
	"github.com/dukex/watcher/pkg/protocol"
)

type InputFactory struct{}

func NewInputFactory() *InputFactory {
	return &InputFactory{}
}

func (*InputFactory) ID() string {
	return "simple"
}

func (*InputFactory) Create(body json.RawMessage) (protocol.Input, error) {
	payload := map[string]any{}

	if len(body) > 0 {
		err := json.Unmarshal(body, &payload)
		if err != nil {
			return nil, fmt.Errorf("the simple input expects an object: %w", err)
		}
	}

	return &Input{Payload: payload}, nil
}

type Input struct {
	Payload map[string]any
}

// Execute returns a copy so executions never share the configured payload.
func (i *Input) Execute(context.Context, map[string]any) (map[string]any, error) {
	return models.DeepCopyMap(i.Payload), nil
}
