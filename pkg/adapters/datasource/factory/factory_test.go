package factory

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/quarrybi/semantic-engine/pkg/adapters/datasource"
	"github.com/quarrybi/semantic-engine/pkg/adapters/datasource/bigquery"
	"github.com/quarrybi/semantic-engine/pkg/models"
)

func warehouseClient(t *testing.T) *bigquery.Client {
	t.Helper()
	client, err := bigquery.NewClient(bigquery.Options{
		ProjectID:   "test-project",
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestFactoryImplementsDatasourceFactory(t *testing.T) {
	var _ datasource.Factory = New(nil, nil, zap.NewNop())
}

func TestExecutorDispatch(t *testing.T) {
	f := New(nil, warehouseClient(t), zap.NewNop())

	executor, err := f.Executor(context.Background(), models.EngineBigQuery)
	if err != nil {
		t.Fatalf("Executor(bigquery): %v", err)
	}
	if executor == nil {
		t.Fatal("expected a warehouse executor")
	}

	if _, err := f.Executor(context.Background(), models.EnginePostgres); err == nil {
		t.Error("missing postgres pool must be an error")
	}
	if _, err := f.Executor(context.Background(), "mysql"); err == nil {
		t.Error("unknown engine must be an error")
	}
}

func TestExecutorWithoutWarehouse(t *testing.T) {
	f := New(nil, nil, zap.NewNop())
	_, err := f.Executor(context.Background(), models.EngineBigQuery)
	if err == nil || !strings.Contains(err.Error(), "no warehouse") {
		t.Errorf("expected a missing-warehouse error, got %v", err)
	}
}

func TestProfilerOnlyForPostgres(t *testing.T) {
	f := New(nil, warehouseClient(t), zap.NewNop())

	if _, err := f.Profiler(context.Background(), models.EngineBigQuery); err == nil {
		t.Error("warehouse tables do not support live profiling")
	}
	if _, err := f.Profiler(context.Background(), models.EnginePostgres); err == nil {
		t.Error("missing postgres pool must be an error")
	}
}
