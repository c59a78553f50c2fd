package datasource

import (
	"context"

	"github.com/quarrybi/semantic-engine/pkg/models"
)

// ColumnProfiler gathers live statistics used by relationship inference.
// Each implementation owns its connection and must be closed when done.
type ColumnProfiler interface {
	// ProfileColumn gathers row, non-null and distinct counts for a column.
	// tableRef is the engine-native qualified name (e.g. "schema.table").
	ProfileColumn(ctx context.Context, tableRef, column string) (*models.ColumnProfile, error)

	// ProfileOverlap measures distinct-value overlap between two columns.
	// At most sampleLimit distinct values are considered per side so cost
	// stays bounded on large tables.
	ProfileOverlap(ctx context.Context, fromRef, fromColumn, toRef, toColumn string, sampleLimit int) (*models.OverlapProfile, error)

	// Close releases the connection.
	Close() error
}

// QueryExecutor runs a compiled statement against one engine.
// Each implementation owns its connection and must be closed when done.
type QueryExecutor interface {
	// Execute runs the statement with bound params and returns all result
	// rows. Implementations must return an error rather than a partial
	// result when any page of the result set cannot be fetched.
	Execute(ctx context.Context, sql string, params []any) (*QueryResult, error)

	// Close releases the connection.
	Close() error
}

// QueryResult contains the results of a query execution.
type QueryResult struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int64    `json:"row_count"`
}

// Factory constructs engine-specific profilers and executors.
type Factory interface {
	// Profiler returns a column profiler for the engine, or an error when
	// the engine does not support live profiling.
	Profiler(ctx context.Context, engine string) (ColumnProfiler, error)

	// Executor returns a query executor for the engine.
	Executor(ctx context.Context, engine string) (QueryExecutor, error)
}
