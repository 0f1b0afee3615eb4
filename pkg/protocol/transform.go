package protocol

import (
	"context"
	"encoding/json"
)

// Transform replaces the payload. It is applied to the watch payload after the
// condition is met and to the payload of a single action.
type Transform interface {
	Execute(ctx context.Context, model map[string]any) (map[string]any, error)
}

type TransformFactory interface {
	Create(body json.RawMessage) (Transform, error)
	ID() string
}
