package warehouse

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsure-ai/inquest/pkg/tools"
)

func TestWarehouseToolAssemblesSQLServerSide(t *testing.T) {
	var gotSQL string
	var gotParams map[string]any
	exec := ExecutorFunc(func(_ context.Context, sql string, params map[string]any) (*QueryResult, error) {
		gotSQL = sql
		gotParams = params
		return &QueryResult{
			Rows:     []map[string]any{{"MODEL_SCORE": 0.42}},
			RowCount: 1,
		}, nil
	})

	tool := NewTool(exec, "TRANSACTIONS_ENRICHED", 500)
	assert.Equal(t, ToolName, tool.Definition().Name)

	result, err := tool.Invoke(context.Background(),
		json.RawMessage(`{"entity_type":"ip","entity_id":"203.0.113.5","date_range_days":7}`))
	require.NoError(t, err)

	assert.Contains(t, gotSQL, "WHERE IP = :entity_id")
	assert.Equal(t, map[string]any{"entity_id": "203.0.113.5"}, gotParams)

	var payload QueryResult
	require.NoError(t, json.Unmarshal(result.Data, &payload))
	assert.Equal(t, 1, payload.RowCount)
}

func TestWarehouseToolRejectsUnknownEntityType(t *testing.T) {
	exec := ExecutorFunc(func(context.Context, string, map[string]any) (*QueryResult, error) {
		t.Fatal("executor must not run")
		return nil, nil
	})

	tool := NewTool(exec, "T", 10)
	_, err := tool.Invoke(context.Background(),
		json.RawMessage(`{"entity_type":"ssn","entity_id":"1","date_range_days":7}`))
	assert.Error(t, err)
}

func TestWarehouseToolSchemaRegisters(t *testing.T) {
	r := tools.NewRegistry()
	exec := ExecutorFunc(func(context.Context, string, map[string]any) (*QueryResult, error) {
		return &QueryResult{}, nil
	})
	require.NoError(t, r.Register(NewTool(exec, "T", 10)))

	assert.NoError(t, r.ValidateArgs(ToolName,
		json.RawMessage(`{"entity_type":"email","entity_id":"a@b.c","date_range_days":30}`)))
	assert.Error(t, r.ValidateArgs(ToolName,
		json.RawMessage(`{"entity_type":"ssn","entity_id":"1","date_range_days":7}`)), "enum rejects unknown types")
	assert.Error(t, r.ValidateArgs(ToolName,
		json.RawMessage(`{"entity_type":"ip","entity_id":"1"}`)), "date range is required")
}
