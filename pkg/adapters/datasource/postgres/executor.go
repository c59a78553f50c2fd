package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quarrybi/semantic-engine/pkg/adapters/datasource"
)

// Executor runs compiled statements against a PostgreSQL source.
type Executor struct {
	pool     *pgxpool.Pool
	ownsPool bool
}

// NewExecutor creates an executor connected to the given source DSN.
func NewExecutor(ctx context.Context, dsn string) (*Executor, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres source: %w", err)
	}
	return &Executor{pool: pool, ownsPool: true}, nil
}

// NewExecutorWithPool creates an executor over an existing pool. The caller
// retains ownership of the pool.
func NewExecutorWithPool(pool *pgxpool.Pool) *Executor {
	return &Executor{pool: pool}
}

// Execute runs the statement and collects all rows.
func (e *Executor) Execute(ctx context.Context, sql string, params []any) (*datasource.QueryResult, error) {
	rows, err := e.pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	result := &datasource.QueryResult{Columns: columns}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read result row: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}

	result.RowCount = int64(len(result.Rows))
	return result, nil
}

// Close releases the pool if this executor created it.
func (e *Executor) Close() error {
	if e.ownsPool && e.pool != nil {
		e.pool.Close()
	}
	return nil
}
