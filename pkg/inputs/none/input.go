// Package none provides the input that loads an empty payload.
package none

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukex/watcher/pkg/protocol"
)

type InputFactory struct{}

func NewInputFactory() *InputFactory {
	return &InputFactory{}
}

func (*InputFactory) ID() string {
	return "none"
}

func (*InputFactory) Create(body json.RawMessage) (protocol.Input, error) {
	if len(body) > 0 && string(body) != "null" && string(body) != "{}" {
		return nil, fmt.Errorf("the none input takes no configuration, got %s", body)
	}

	return Input{}, nil
}

type Input struct{}

func (Input) Execute(context.Context, map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}
