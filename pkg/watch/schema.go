package watch

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema describes the JSON shape of a watch. Component bodies are
// checked later by their registries.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "id": {"type": "string", "minLength": 1, "pattern": "^[^/\\\\]+$"},
    "name": {"type": "string"},
    "description": {"type": "string"},
    "trigger": {
      "type": "object",
      "properties": {
        "schedule": {
          "type": "object",
          "properties": {
            "cron": {"type": "string", "minLength": 1},
            "interval": {"type": ["string", "number"]}
          },
          "additionalProperties": false
        }
      },
      "additionalProperties": false
    },
    "input": {"$ref": "#/definitions/typed"},
    "condition": {"$ref": "#/definitions/typed"},
    "transform": {"$ref": "#/definitions/typed"},
    "actions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "config": {"type": "object"},
          "condition": {"$ref": "#/definitions/typed"},
          "transform": {"$ref": "#/definitions/typed"},
          "throttle_period": {"type": ["string", "number"]}
        }
      }
    },
    "throttle_period": {"type": ["string", "number"]},
    "metadata": {"type": "object"}
  },
  "definitions": {
    "typed": {
      "type": "object",
      "minProperties": 1,
      "maxProperties": 1
    }
  }
}`

type Schema struct {
	schema *gojsonschema.Schema
}

func NewSchema() (*Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to load watch schema: %w", err)
	}

	return &Schema{schema: schema}, nil
}

// Validate checks a raw watch document against the schema.
func (s *Schema) Validate(document []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWatch, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidWatch, strings.Join(problems, "; "))
	}

	return nil
}
