package chain_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dukex/watcher/pkg/protocol"
	"github.com/dukex/watcher/pkg/transforms/chain"
	"github.com/dukex/watcher/pkg/transforms/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scriptOnly(raw json.RawMessage) (protocol.Transform, error) {
	var typed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &typed); err != nil {
		return nil, err
	}

	return script.NewTransformFactory().Create(typed["script"])
}

func TestTransform_Execute(t *testing.T) {
	factory := chain.NewTransformFactory(scriptOnly)
	assert.Equal(t, "chain", factory.ID())

	transform, err := factory.Create(json.RawMessage(`[
		{"script": "{\"count\": {{ .ctx.payload.total }}}"},
		{"script": "{\"doubled\": {{ mul .ctx.payload.count }}}"}
	]`))
	require.Error(t, err, "unknown template function must fail at parse time")
	assert.Nil(t, transform)

	transform, err = factory.Create(json.RawMessage(`[
		{"script": "{\"count\": {{ .ctx.payload.total }}, \"watch\": \"{{ .ctx.watch_id }}\"}"},
		{"script": "{\"message\": \"{{ .ctx.payload.watch }} saw {{ .ctx.payload.count }}\"}"}
	]`))
	require.NoError(t, err)

	model := map[string]any{"ctx": map[string]any{"watch_id": "w1", "payload": map[string]any{"total": 4}}}

	payload, err := transform.Execute(context.Background(), model)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"message": "w1 saw 4"}, payload)
	assert.Equal(t, map[string]any{"total": 4}, model["ctx"].(map[string]any)["payload"])
}

func TestTransformFactory_Create_Invalid(t *testing.T) {
	factory := chain.NewTransformFactory(scriptOnly)

	_, err := factory.Create(json.RawMessage(`[]`))
	assert.Error(t, err)

	_, err = factory.Create(json.RawMessage(`{"script": "{}"}`))
	assert.Error(t, err)

	_, err = factory.Create(json.RawMessage(`[{"script": {"params": {}}}]`))
	assert.Error(t, err)
}
