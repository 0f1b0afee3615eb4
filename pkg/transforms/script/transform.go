// Package script provides the transform that renders a template into the new payload.
package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/dukex/watcher/pkg/protocol"
	"github.com/dukex/watcher/pkg/template"
)

type TransformFactory struct{}

func NewTransformFactory() *TransformFactory {
	return &TransformFactory{}
}

func (*TransformFactory) ID() string {
	return "script"
}

// Create accepts a template string or {"source": "...", "params": {...}}.
func (*TransformFactory) Create(body json.RawMessage) (protocol.Transform, error) {
	var config struct {
		Source string         `json:"source"`
		Params map[string]any `json:"params"`
	}

	err := json.Unmarshal(body, &config.Source)
	if err != nil {
		err = json.Unmarshal(body, &config)
		if err != nil {
			return nil, fmt.Errorf("expected a template string or {\"source\": ...}: %w", err)
		}
	}

	if config.Source == "" {
		return nil, errors.New("script source is required")
	}

	tmpl, err := template.Compile("transform", config.Source)
	if err != nil {
		return nil, err
	}

	return &Transform{Source: config.Source, Params: config.Params, tmpl: tmpl}, nil
}

type Transform struct {
	Source string
	Params map[string]any

	tmpl *template.Template
}

// Execute renders the template with .ctx and .params. A rendered object
// becomes the payload; any other value is stored under "_value".
func (t *Transform) Execute(_ context.Context, model map[string]any) (map[string]any, error) {
	data := maps.Clone(model)
	if data == nil {
		data = map[string]any{}
	}

	data["params"] = t.Params

	result, err := t.tmpl.Render(data)
	if err != nil {
		return nil, fmt.Errorf("transformation failed: %w", err)
	}

	if payload, ok := result.(map[string]any); ok {
		return payload, nil
	}

	return map[string]any{"_value": result}, nil
}
