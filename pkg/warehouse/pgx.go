package warehouse

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxExecutor runs warehouse queries against a Postgres-compatible store
// through a pgx pool.
type PgxExecutor struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPgxExecutor connects the pool and verifies it with a ping.
func NewPgxExecutor(ctx context.Context, dsn string, timeout time.Duration) (*PgxExecutor, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}
	return &PgxExecutor{pool: pool, timeout: timeout}, nil
}

// Close releases the pool.
func (e *PgxExecutor) Close() {
	e.pool.Close()
}

// Execute rewrites named parameters to positional placeholders and runs the
// query under the per-call timeout.
func (e *PgxExecutor) Execute(ctx context.Context, sql string, params map[string]any) (*QueryResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	positional, args := bindNamed(sql, params)
	rows, err := e.pool.Query(ctx, positional, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := &QueryResult{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		record := make(map[string]any, len(fields))
		for i, fd := range fields {
			record[string(fd.Name)] = values[i]
		}
		out.Rows = append(out.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	out.RowCount = len(out.Rows)
	return out, nil
}

// bindNamed converts ":name" placeholders to "$n" in deterministic order.
func bindNamed(sql string, params map[string]any) (string, []any) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	// Longest first so ":entity" never clobbers ":entity_id".
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	args := make([]any, 0, len(params))
	n := 0
	for _, name := range names {
		placeholder := ":" + name
		if !strings.Contains(sql, placeholder) {
			continue
		}
		n++
		sql = strings.ReplaceAll(sql, placeholder, fmt.Sprintf("$%d", n))
		args = append(args, params[name])
	}
	return sql, args
}
