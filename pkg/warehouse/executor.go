// Package warehouse exposes the data-warehouse query surface the mandatory
// snowflake_analysis phase runs against. The warehouse itself is an external
// collaborator reached through QueryExecutor; dialect translation happens on
// the other side of that interface.
package warehouse

import "context"

// QueryResult is the outcome of one warehouse query.
type QueryResult struct {
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// QueryExecutor executes SQL against the warehouse with a per-call timeout
// owned by the implementation.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string, params map[string]any) (*QueryResult, error)
}

// ExecutorFunc adapts a function into a QueryExecutor.
type ExecutorFunc func(ctx context.Context, sql string, params map[string]any) (*QueryResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, sql string, params map[string]any) (*QueryResult, error) {
	return f(ctx, sql, params)
}
