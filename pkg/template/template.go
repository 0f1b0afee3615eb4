// Package template renders Go text/templates against execution data and
// resolves dotted paths ("ctx.payload.hits.total") inside JSON-like documents.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Template is a parsed template, safe for concurrent rendering.
type Template struct {
	source string
	tmpl   *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"now": func() string {
			return time.Now().UTC().Format(time.RFC3339)
		},
		"rand": func(max int) int {
			if max <= 0 {
				return 0
			}

			num := make([]byte, 1)

			_, err := rand.Read(num)
			if err != nil {
				return 0
			}

			return int(num[0]) % max
		},
		"json": func(v any) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", err
			}

			return string(b), nil
		},
		"path": Lookup,
	}
}

// Compile parses templateStr once so it can be rendered repeatedly.
func Compile(name, templateStr string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Funcs(funcs()).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	return &Template{source: templateStr, tmpl: tmpl}, nil
}

func (t *Template) Source() string {
	return t.source
}

// RenderString executes the template and returns the raw output.
func (t *Template) RenderString(data any) (string, error) {
	var buf strings.Builder

	err := t.tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", t.source, err)
	}

	return buf.String(), nil
}

// Render executes the template and coerces the output: JSON objects and arrays
// are decoded, numbers become float64 and booleans bool; anything else stays a string.
func (t *Template) Render(data any) (any, error) {
	out, err := t.RenderString(data)
	if err != nil {
		return nil, err
	}

	return coerce(t.source, out)
}

func Render(templateStr string, data any) (any, error) {
	tmpl, err := Compile("transform", templateStr)
	if err != nil {
		return nil, err
	}

	return tmpl.Render(data)
}

func coerce(source, rendered string) (any, error) {
	result := strings.TrimSpace(rendered)
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return jsonResult, fmt.Errorf("failed to parse json '%s': %w", source, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}
