package protocol

import (
	"context"
	"log/slog"
)

// Action performs the side effect of a watch action. model is the execution
// document, rooted at "ctx".
type Action interface {
	Execute(ctx context.Context, model map[string]any, logger *slog.Logger) (any, error)
}

// Simulator is implemented by actions that can describe what they would do
// without performing it. Actions that do not implement it are simulated by
// echoing their configuration.
type Simulator interface {
	Simulate(ctx context.Context, model map[string]any) (any, error)
}

type ActionFactory interface {
	Create(config map[string]any) (Action, error)
	ID() string
}
