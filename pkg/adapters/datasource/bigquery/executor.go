package bigquery

import (
	"context"

	"go.uber.org/zap"

	"github.com/quarrybi/semantic-engine/pkg/adapters/datasource"
)

// Executor runs compiled statements as BigQuery jobs.
type Executor struct {
	client *Client
	logger *zap.Logger
}

// NewExecutor creates an executor over the given client.
func NewExecutor(client *Client, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{client: client, logger: logger}
}

var _ datasource.QueryExecutor = (*Executor)(nil)

// Execute submits the statement as a job, waits for completion and downloads
// the full result set.
func (e *Executor) Execute(ctx context.Context, sql string, params []any) (*datasource.QueryResult, error) {
	ref, err := e.client.insertJob(ctx, sql, params)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Submitted warehouse job", zap.String("job_id", ref.JobID))

	if err := e.client.waitForJob(ctx, ref); err != nil {
		return nil, err
	}

	result, err := e.client.fetchAllResults(ctx, ref)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Warehouse job finished",
		zap.String("job_id", ref.JobID),
		zap.Int64("rows", result.RowCount))

	return result, nil
}

// Close is a no-op; the underlying HTTP client is shared.
func (e *Executor) Close() error {
	return nil
}
