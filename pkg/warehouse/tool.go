package warehouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nsure-ai/inquest/pkg/models"
	"github.com/nsure-ai/inquest/pkg/tools"
)

// ToolName is the registry name of the mandatory warehouse tool.
const ToolName = "warehouse_query"

// queryArgs are the arguments the LLM supplies. The SQL itself is assembled
// here so the mandatory column contract cannot be bypassed by the model.
type queryArgs struct {
	EntityType    string `json:"entity_type"`
	EntityID      string `json:"entity_id"`
	DateRangeDays int    `json:"date_range_days"`
}

var toolSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"entity_type": {
			"type": "string",
			"enum": ["ip", "email", "device_id", "fingerprint"],
			"description": "Kind of entity under investigation"
		},
		"entity_id": {
			"type": "string",
			"minLength": 1,
			"description": "Entity value to filter transactions by"
		},
		"date_range_days": {
			"type": "integer",
			"minimum": 1,
			"description": "How many days of transactions to fetch"
		}
	},
	"required": ["entity_type", "entity_id", "date_range_days"]
}`)

// NewTool builds the warehouse query tool over the given executor.
func NewTool(exec QueryExecutor, table string, resultLimit int) tools.Tool {
	return &tools.Func{
		Def: models.ToolDefinition{
			Name: ToolName,
			Description: "Query the transactions warehouse for the entity under investigation. " +
				"Returns the mandatory transaction column set ordered newest first.",
			InputSchema: toolSchema,
			Category:    "warehouse",
		},
		Fn: func(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
			var q queryArgs
			if err := json.Unmarshal(args, &q); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}
			sql, err := BuildTransactionQuery(table, q.EntityType, q.DateRangeDays, resultLimit)
			if err != nil {
				return nil, err
			}
			result, err := exec.Execute(ctx, sql, map[string]any{"entity_id": q.EntityID})
			if err != nil {
				return nil, fmt.Errorf("warehouse query: %w", err)
			}
			return tools.JSONResult(result)
		},
	}
}
