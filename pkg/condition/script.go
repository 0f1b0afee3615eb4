package condition

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/watcher/pkg/template"
)

const TypeScript = "script"

// ScriptCondition is a text/template that must render "true" or "false".
// The template sees .ctx (the execution model) and .params.
type ScriptCondition struct {
	Source string
	Params map[string]any
}

func (ScriptCondition) Type() string { return TypeScript }

type ScriptFactory struct{}

func (ScriptFactory) Type() string { return TypeScript }

// Parse accepts either a bare template string or {"source": "...", "params": {...}}.
func (ScriptFactory) Parse(_ string, body json.RawMessage) (Condition, error) {
	var source string
	if err := json.Unmarshal(body, &source); err == nil {
		return compileScript(ScriptCondition{Source: source})
	}

	var config struct {
		Source string         `json:"source"`
		Params map[string]any `json:"params"`
	}

	err := json.Unmarshal(body, &config)
	if err != nil {
		return nil, fmt.Errorf("expected a template string or {\"source\": ...}: %w", err)
	}

	return compileScript(ScriptCondition{Source: config.Source, Params: config.Params})
}

func compileScript(c ScriptCondition) (Condition, error) {
	if c.Source == "" {
		return nil, errors.New("script source is required")
	}

	_, err := template.Compile(TypeScript, c.Source)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (ScriptFactory) CreateExecutable(c Condition) (Executable, error) {
	condition, ok := c.(ScriptCondition)
	if !ok {
		return nil, fmt.Errorf("expected a script condition, got %T", c)
	}

	tmpl, err := template.Compile(TypeScript, condition.Source)
	if err != nil {
		return nil, err
	}

	return executableScript{condition: condition, tmpl: tmpl}, nil
}

type executableScript struct {
	condition ScriptCondition
	tmpl      *template.Template
}

func (e executableScript) Condition() Condition { return e.condition }

func (e executableScript) Execute(ctx Context) (Result, error) {
	data := map[string]any{
		"params": e.condition.Params,
	}

	for k, v := range ctx.Model() {
		data[k] = v
	}

	out, err := e.tmpl.Render(data)
	if err != nil {
		return Result{Type: TypeScript}, err
	}

	met, ok := out.(bool)
	if !ok {
		return Result{Type: TypeScript}, fmt.Errorf("script must render a boolean, got %q", fmt.Sprint(out))
	}

	return Result{Type: TypeScript, Met: met}, nil
}
