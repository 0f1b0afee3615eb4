// Package httpinput provides the input that loads its payload from an HTTP endpoint.
package httpinput

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/watcher/pkg/httprequest"
	"github.com/dukex/watcher/pkg/protocol"
)

type InputFactory struct {
	logger *slog.Logger
}

func NewInputFactory(logger *slog.Logger) *InputFactory {
	return &InputFactory{logger: logger.With("module", "http_input")}
}

func (*InputFactory) ID() string {
	return "http"
}

// Create reads {"request": {...}} where the request accepts the webhook action options.
func (f *InputFactory) Create(body json.RawMessage) (protocol.Input, error) {
	var config struct {
		Request map[string]any `json:"request"`
	}

	err := json.Unmarshal(body, &config)
	if err != nil {
		return nil, fmt.Errorf("the http input expects {\"request\": {...}}: %w", err)
	}

	request, err := httprequest.New(config.Request)
	if err != nil {
		return nil, err
	}

	return &Input{request: request, logger: f.logger}, nil
}

type Input struct {
	request *httprequest.Request
	logger  *slog.Logger
}

// Execute sends the request. Non-object bodies are stored under "_value"; the
// status code and headers are added as "_status_code" and "_headers".
func (i *Input) Execute(ctx context.Context, model map[string]any) (map[string]any, error) {
	response, err := i.request.Do(ctx, model, i.logger)
	if err != nil {
		return nil, err
	}

	payload, ok := response.Body.(map[string]any)
	if !ok {
		payload = map[string]any{}
		if response.Body != nil {
			payload["_value"] = response.Body
		}
	}

	headers := make(map[string]any, len(response.Headers))
	for key, values := range response.Headers {
		list := make([]any, len(values))
		for n, v := range values {
			list[n] = v
		}

		headers[key] = list
	}

	payload["_status_code"] = float64(response.StatusCode)
	payload["_headers"] = headers

	if response.StatusCode >= 400 {
		return payload, fmt.Errorf("http input received status %d", response.StatusCode)
	}

	return payload, nil
}
