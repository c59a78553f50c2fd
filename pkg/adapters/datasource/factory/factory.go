// Package factory wires engine-specific adapters behind the datasource
// interfaces. It lives below the datasource package so the interface
// definitions stay import-free of their implementations.
package factory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/quarrybi/semantic-engine/pkg/adapters/datasource"
	"github.com/quarrybi/semantic-engine/pkg/adapters/datasource/bigquery"
	"github.com/quarrybi/semantic-engine/pkg/adapters/datasource/postgres"
	"github.com/quarrybi/semantic-engine/pkg/models"
)

// ClientFactory builds profilers and executors over shared connections:
// one pgx pool for the PostgreSQL source and one REST client for the
// warehouse.
type ClientFactory struct {
	pgPool   *pgxpool.Pool
	bqClient *bigquery.Client
	logger   *zap.Logger
}

// New creates a factory. Either connection may be nil when the deployment
// has no source of that engine; requesting it then fails.
func New(pgPool *pgxpool.Pool, bqClient *bigquery.Client, logger *zap.Logger) *ClientFactory {
	return &ClientFactory{pgPool: pgPool, bqClient: bqClient, logger: logger}
}

var _ datasource.Factory = (*ClientFactory)(nil)

// Profiler returns a column profiler for the engine. Only PostgreSQL sources
// support live profiling; warehouse tables are classified by naming evidence
// alone.
func (f *ClientFactory) Profiler(ctx context.Context, engine string) (datasource.ColumnProfiler, error) {
	switch engine {
	case models.EnginePostgres:
		if f.pgPool == nil {
			return nil, fmt.Errorf("no postgres source configured")
		}
		return postgres.NewProfilerWithPool(f.pgPool), nil
	default:
		return nil, fmt.Errorf("engine %q does not support live profiling", engine)
	}
}

// Executor returns a query executor for the engine.
func (f *ClientFactory) Executor(ctx context.Context, engine string) (datasource.QueryExecutor, error) {
	switch engine {
	case models.EnginePostgres:
		if f.pgPool == nil {
			return nil, fmt.Errorf("no postgres source configured")
		}
		return postgres.NewExecutorWithPool(f.pgPool), nil
	case models.EngineBigQuery:
		if f.bqClient == nil {
			return nil, fmt.Errorf("no warehouse configured")
		}
		return bigquery.NewExecutor(f.bqClient, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported engine %q", engine)
	}
}
