package template

import (
	"reflect"
	"strconv"
	"strings"
)

// Lookup resolves a dotted path in nested maps and slices. Numeric segments
// index into slices. It returns nil when any segment is missing.
func Lookup(data any, path string) any {
	if path == "" {
		return data
	}

	current := data

	for _, segment := range strings.Split(path, ".") {
		if current == nil {
			return nil
		}

		switch node := current.(type) {
		case map[string]any:
			current = node[segment]
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil
			}

			current = node[index]
		default:
			current = lookupReflect(node, segment)
		}
	}

	return current
}

func lookupReflect(node any, segment string) any {
	value := reflect.ValueOf(node)

	switch value.Kind() {
	case reflect.Map:
		if value.Type().Key().Kind() != reflect.String {
			return nil
		}

		item := value.MapIndex(reflect.ValueOf(segment).Convert(value.Type().Key()))
		if !item.IsValid() {
			return nil
		}

		return item.Interface()
	case reflect.Slice, reflect.Array:
		index, err := strconv.Atoi(segment)
		if err != nil || index < 0 || index >= value.Len() {
			return nil
		}

		return value.Index(index).Interface()
	default:
		return nil
	}
}
