package protocol

import (
	"context"
	"encoding/json"
)

// Input loads the payload a watch condition is evaluated against.
type Input interface {
	Execute(ctx context.Context, model map[string]any) (map[string]any, error)
}

type InputFactory interface {
	Create(body json.RawMessage) (Input, error)
	ID() string
}
