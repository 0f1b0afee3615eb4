package condition_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dukex/watcher/pkg/condition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testContext struct {
	watchID string
	now     time.Time
	model   map[string]any
}

func (c testContext) WatchID() string          { return c.watchID }
func (c testContext) ExecutionTime() time.Time { return c.now }
func (c testContext) Model() map[string]any    { return c.model }

func newContext(payload map[string]any) testContext {
	return testContext{
		watchID: "watch-1",
		now:     time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		model:   map[string]any{"ctx": map[string]any{"payload": payload}},
	}
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out))

	return out
}

func TestRegistry_UnknownType(t *testing.T) {
	registry := condition.NewDefaultRegistry()

	_, err := registry.ParseCondition("my_watch", json.RawMessage(`{"does_not_exist": {}}`))
	require.Error(t, err)

	assert.True(t, errors.Is(err, condition.ErrParse))
	assert.Contains(t, err.Error(), "my_watch")
	assert.Contains(t, err.Error(), "does_not_exist")

	var parseErr *condition.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "does_not_exist", parseErr.Type)
}

func TestRegistry_MalformedConditions(t *testing.T) {
	registry := condition.NewDefaultRegistry()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty object", `{}`},
		{"empty input", ``},
		{"two types", `{"always": {}, "never": {}}`},
		{"not an object", `["always"]`},
		{"always with fields", `{"always": {"x": 1}}`},
		{"compare with two paths", `{"compare": {"ctx.a": {"eq": 1}, "ctx.b": {"eq": 2}}}`},
		{"compare with unknown op", `{"compare": {"ctx.a": {"between": 1}}}`},
		{"array_compare without op", `{"array_compare": {"ctx.a": {"path": "x"}}}`},
		{"array_compare bad quantifier", `{"array_compare": {"ctx.a": {"eq": {"value": 1, "quantifier": "most"}}}}`},
		{"compare with date math out of range", `{"compare": {"ctx.a": {"gte": "<{now-99999999999w}>"}}}`},
		{"compare with date math overflowing int64", `{"compare": {"ctx.a": {"lt": "<{now+99999999999999999999s}>"}}}`},
		{"array_compare with date math out of range", `{"array_compare": {"ctx.a": {"gt": {"value": "<{now+99999999999d}>"}}}}`},
		{"script without source", `{"script": {"params": {}}}`},
		{"script that does not parse", `{"script": "{{ if }}"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.ParseCondition("w", json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, condition.ErrParse)
		})
	}
}

func TestCompare_DateMathWithinRange(t *testing.T) {
	registry := condition.NewDefaultRegistry()

	_, err := registry.ParseCondition("w", json.RawMessage(`{"compare": {"ctx.a": {"gte": "<{now-15000w}>"}}}`))
	require.NoError(t, err)
}

func TestNewRegistry_DuplicateType(t *testing.T) {
	_, err := condition.NewRegistry(condition.AlwaysFactory{}, condition.AlwaysFactory{})
	assert.Error(t, err)
}

func TestRegistry_Types(t *testing.T) {
	assert.Equal(t,
		[]string{"always", "array_compare", "compare", "never", "script"},
		condition.NewDefaultRegistry().Types(),
	)
}

func TestEqual(t *testing.T) {
	registry := condition.NewDefaultRegistry()

	a, err := registry.ParseExecutable("w", json.RawMessage(`{"compare": {"ctx.payload.x": {"gte": 5}}}`))
	require.NoError(t, err)

	b, err := registry.ParseExecutable("other", json.RawMessage(`{"compare": {"ctx.payload.x": {"gte": 5}}}`))
	require.NoError(t, err)

	c, err := registry.ParseExecutable("w", json.RawMessage(`{"compare": {"ctx.payload.x": {"gt": 5}}}`))
	require.NoError(t, err)

	assert.True(t, condition.Equal(a, b))
	assert.False(t, condition.Equal(a, c))
	assert.False(t, condition.Equal(a, nil))
	assert.True(t, condition.Equal(nil, nil))
}

func TestAlwaysNever(t *testing.T) {
	registry := condition.NewDefaultRegistry()
	ctx := newContext(nil)

	always, err := registry.ParseExecutable("w", json.RawMessage(`{"always": {}}`))
	require.NoError(t, err)

	never, err := registry.ParseExecutable("w", json.RawMessage(`{"never": null}`))
	require.NoError(t, err)

	result, err := always.Execute(ctx)
	require.NoError(t, err)
	assert.True(t, result.Met)

	result, err = never.Execute(ctx)
	require.NoError(t, err)
	assert.False(t, result.Met)
}

func TestCompare(t *testing.T) {
	registry := condition.NewDefaultRegistry()

	payload := decode(t, `{
		"total": 7,
		"limit": 10,
		"status": "green",
		"last_seen": "2024-05-10T11:30:00Z",
		"missing": null
	}`)

	tests := []struct {
		name      string
		condition string
		met       bool
	}{
		{"gte met", `{"ctx.payload.total": {"gte": 5}}`, true},
		{"gte equal", `{"ctx.payload.total": {"gte": 7}}`, true},
		{"gt not met", `{"ctx.payload.total": {"gt": 7}}`, false},
		{"lt met", `{"ctx.payload.total": {"lt": 8}}`, true},
		{"lte not met", `{"ctx.payload.total": {"lte": 6}}`, false},
		{"eq string", `{"ctx.payload.status": {"eq": "green"}}`, true},
		{"not_eq string", `{"ctx.payload.status": {"not_eq": "red"}}`, true},
		{"uppercase op", `{"ctx.payload.total": {"EQ": 7}}`, true},
		{"reference", `{"ctx.payload.total": {"lt": "{{ctx.payload.limit}}"}}`, true},
		{"date math after", `{"ctx.payload.last_seen": {"gte": "<{now-1h}>"}}`, true},
		{"date math before", `{"ctx.payload.last_seen": {"gte": "<{now-10m}>"}}`, false},
		{"date math now", `{"ctx.payload.last_seen": {"lt": "<{now}>"}}`, true},
		{"missing eq null", `{"ctx.payload.missing": {"eq": null}}`, true},
		{"absent path eq value", `{"ctx.payload.nope": {"eq": 1}}`, false},
		{"ordered op on mixed types", `{"ctx.payload.status": {"gt": 1}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executable, err := registry.ParseExecutable("w", json.RawMessage(`{"compare": `+tt.condition+`}`))
			require.NoError(t, err)

			result, err := executable.Execute(newContext(payload))
			require.NoError(t, err)
			assert.Equal(t, tt.met, result.Met)
			assert.Equal(t, condition.TypeCompare, result.Type)
			assert.Contains(t, result.Detail, "resolved_values")
		})
	}
}

func TestArrayCompare(t *testing.T) {
	registry := condition.NewDefaultRegistry()

	payload := decode(t, `{
		"buckets": [{"doc_count": 1}, {"doc_count": 4}, {"doc_count": 9}],
		"numbers": [3, 4, 5],
		"empty": [],
		"scalar": 3
	}`)

	tests := []struct {
		name      string
		condition string
		met       bool
		wantErr   bool
	}{
		{"some met", `{"ctx.payload.buckets": {"path": "doc_count", "gte": {"value": 5}}}`, true, false},
		{"all not met", `{"ctx.payload.buckets": {"path": "doc_count", "gte": {"value": 2, "quantifier": "all"}}}`, false, false},
		{"all met", `{"ctx.payload.buckets": {"path": "doc_count", "gte": {"value": 1, "quantifier": "all"}}}`, true, false},
		{"no element path", `{"ctx.payload.numbers": {"eq": {"value": 4}}}`, true, false},
		{"empty all", `{"ctx.payload.empty": {"eq": {"value": 1, "quantifier": "all"}}}`, true, false},
		{"empty some", `{"ctx.payload.empty": {"eq": {"value": 1, "quantifier": "some"}}}`, false, false},
		{"not an array", `{"ctx.payload.scalar": {"eq": {"value": 1}}}`, false, true},
		{"missing array", `{"ctx.payload.nope": {"eq": {"value": 1}}}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executable, err := registry.ParseExecutable("w", json.RawMessage(`{"array_compare": `+tt.condition+`}`))
			require.NoError(t, err)

			result, err := executable.Execute(newContext(payload))
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.met, result.Met)
		})
	}
}

func TestScript(t *testing.T) {
	registry := condition.NewDefaultRegistry()
	payload := decode(t, `{"hits": {"total": 12}}`)

	tests := []struct {
		name      string
		condition string
		met       bool
		wantErr   bool
	}{
		{"string source", `"{{ gt .ctx.payload.hits.total 10.0 }}"`, true, false},
		{"params", `{"source": "{{ lt .ctx.payload.hits.total .params.threshold }}", "params": {"threshold": 5.0}}`, false, false},
		{"path func", `{"source": "{{ eq (path . \"ctx.payload.hits.total\") 12.0 }}"}`, true, false},
		{"non boolean output", `"{{ .ctx.payload.hits.total }}"`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executable, err := registry.ParseExecutable("w", json.RawMessage(`{"script": `+tt.condition+`}`))
			require.NoError(t, err)

			result, err := executable.Execute(newContext(payload))
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.met, result.Met)
		})
	}
}
