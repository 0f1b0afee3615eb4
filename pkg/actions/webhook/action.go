// Package webhook provides the action that calls an HTTP endpoint.
package webhook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/watcher/pkg/httprequest"
	"github.com/dukex/watcher/pkg/protocol"
)

// ActionFactory creates webhook actions.
type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() string {
	return "webhook"
}

func (*ActionFactory) Create(config map[string]any) (protocol.Action, error) {
	request, err := httprequest.New(config)
	if err != nil {
		return nil, err
	}

	return &Action{Request: request}, nil
}

type Action struct {
	Request *httprequest.Request
}

// Execute sends the request. Responses with a status of 400 or above fail the action.
func (a *Action) Execute(ctx context.Context, model map[string]any, logger *slog.Logger) (any, error) {
	logger = logger.With("action_type", "webhook")

	response, err := a.Request.Do(ctx, model, logger)
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"status_code": response.StatusCode,
		"body":        response.Body,
	}

	if response.StatusCode >= 400 {
		return result, fmt.Errorf("webhook returned status %d", response.StatusCode)
	}

	return result, nil
}

// Simulate renders the request without sending it.
func (a *Action) Simulate(_ context.Context, model map[string]any) (any, error) {
	return a.Request.Describe(model)
}
