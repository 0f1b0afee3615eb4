package condition

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/watcher/pkg/template"
)

// Op is a comparison operator.
type Op string

const (
	OpEq    Op = "eq"
	OpNotEq Op = "not_eq"
	OpGt    Op = "gt"
	OpGte   Op = "gte"
	OpLt    Op = "lt"
	OpLte   Op = "lte"
)

func parseOp(s string) (Op, error) {
	switch op := Op(strings.ToLower(s)); op {
	case OpEq, OpNotEq, OpGt, OpGte, OpLt, OpLte:
		return op, nil
	default:
		return "", fmt.Errorf("unknown comparison operator [%s]", s)
	}
}

// Eval applies the operator. Ordered operators are false for values that cannot be ordered.
func (op Op) Eval(actual, expected any) bool {
	switch op {
	case OpEq:
		return equalValues(actual, expected)
	case OpNotEq:
		return !equalValues(actual, expected)
	}

	c, ok := compareValues(actual, expected)
	if !ok {
		return false
	}

	switch op {
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	default:
		return false
	}
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if c, ok := compareValues(a, b); ok {
		return c == 0
	}

	return reflect.DeepEqual(a, b)
}

func compareValues(a, b any) (int, bool) {
	if at, ok := a.(time.Time); ok {
		bt, ok := toTime(b)
		if !ok {
			return 0, false
		}

		return at.Compare(bt), true
	}

	if bt, ok := b.(time.Time); ok {
		at, ok := toTime(a)
		if !ok {
			return 0, false
		}

		return at.Compare(bt), true
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)

	if aok && bok {
		return strings.Compare(as, bs), true
	}

	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}

		return parsed, true
	default:
		return time.Time{}, false
	}
}

var dateMathPattern = regexp.MustCompile(`^<\{now(?:([+-])(\d+)([smhdw]))?\}>$`)

var referencePattern = regexp.MustCompile(`^\{\{\s*(ctx(?:\.[^\s}]+)?)\s*\}\}$`)

// resolveValue expands date math ("<{now-1d}>") against the execution time and
// path references ("{{ctx.payload.limit}}") against the execution model.
func resolveValue(value any, ctx Context) (any, bool) {
	s, ok := value.(string)
	if !ok {
		return value, false
	}

	if offset, ok, err := dateMathOffset(s); ok && err == nil {
		return ctx.ExecutionTime().Add(offset), true
	}

	if match := referencePattern.FindStringSubmatch(s); match != nil {
		return template.Lookup(ctx.Model(), match[1]), true
	}

	return value, false
}

// dateMathOffset reports whether s is date math and the offset it adds to now.
// Offsets that do not fit a time.Duration are an error.
func dateMathOffset(s string) (time.Duration, bool, error) {
	match := dateMathPattern.FindStringSubmatch(s)
	if match == nil {
		return 0, false, nil
	}

	if match[1] == "" {
		return 0, true, nil
	}

	unit := unitDuration(match[3])

	amount, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil || amount > math.MaxInt64/int64(unit) {
		return 0, true, fmt.Errorf("date math [%s] is out of range", s)
	}

	offset := time.Duration(amount) * unit
	if match[1] == "-" {
		offset = -offset
	}

	return offset, true, nil
}

// validateOperand rejects comparison values that can never be resolved.
func validateOperand(value any) error {
	s, ok := value.(string)
	if !ok {
		return nil
	}

	_, _, err := dateMathOffset(s)

	return err
}

func unitDuration(unit string) time.Duration {
	switch unit {
	case "s":
		return time.Second
	case "m":
		return time.Minute
	case "h":
		return time.Hour
	case "d":
		return 24 * time.Hour
	case "w":
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}
