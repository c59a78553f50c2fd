package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrybi/semantic-engine/pkg/adapters/datasource"
	"github.com/quarrybi/semantic-engine/pkg/logging"
	"github.com/quarrybi/semantic-engine/pkg/models"
	"github.com/quarrybi/semantic-engine/pkg/retry"
	"github.com/quarrybi/semantic-engine/pkg/sqlguard"
)

// QueryResult is what execution returns to callers: rows plus the plan that
// produced them, for explainability.
type QueryResult struct {
	Columns  []string          `json:"columns"`
	Rows     [][]any           `json:"rows"`
	RowCount int64             `json:"row_count"`
	Plan     *models.QueryPlan `json:"plan"`
}

// QueryService plans and executes semantic queries and guarded raw SQL.
type QueryService interface {
	// Plan compiles a spec without executing it.
	Plan(ctx context.Context, spec *models.SemanticQuerySpec) (*models.QueryPlan, error)

	// Execute compiles and runs a spec.
	Execute(ctx context.Context, spec *models.SemanticQuerySpec) (*QueryResult, error)

	// ExecuteRaw runs caller-provided SQL restricted to the selected
	// tables. The statement passes through the scoped guard first; a
	// statement that cannot be fully resolved never executes.
	ExecuteRaw(ctx context.Context, dataModelID uuid.UUID, tableIDs []uuid.UUID, rawSQL string) (*QueryResult, error)
}

type queryService struct {
	catalog CatalogService
	factory datasource.Factory
	logger  *zap.Logger
}

// NewQueryService creates a QueryService.
func NewQueryService(catalog CatalogService, factory datasource.Factory, logger *zap.Logger) QueryService {
	return &queryService{
		catalog: catalog,
		factory: factory,
		logger:  logger.Named("query"),
	}
}

func (s *queryService) Plan(ctx context.Context, spec *models.SemanticQuerySpec) (*models.QueryPlan, error) {
	catalog, err := s.catalog.Load(ctx, spec.DataModelID)
	if err != nil {
		return nil, err
	}
	return BuildPlan(catalog, spec)
}

func (s *queryService) Execute(ctx context.Context, spec *models.SemanticQuerySpec) (*QueryResult, error) {
	plan, err := s.Plan(ctx, spec)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, plan)
}

func (s *queryService) ExecuteRaw(ctx context.Context, dataModelID uuid.UUID, tableIDs []uuid.UUID, rawSQL string) (*QueryResult, error) {
	if rawSQL == "" {
		return nil, planErrorf(CodePlanBuildFailed, "rawSql must not be empty")
	}
	if len(tableIDs) == 0 {
		return nil, planErrorf(CodePlanBuildFailed, "tableIds must name at least one table")
	}

	catalog, err := s.catalog.Load(ctx, dataModelID)
	if err != nil {
		return nil, err
	}

	allowed := make([]*models.ModelTable, 0, len(tableIDs))
	engine := ""
	for _, id := range tableIDs {
		t := catalog.Table(id)
		if t == nil {
			return nil, planErrorf(CodePlanBuildFailed, "table %s is not in the data model", id)
		}
		if !t.Executable {
			return nil, planErrorf(CodeTableNotExecutable, "table %q is not executable: %s", t.DisplayName, t.ExecutableReason)
		}
		if engine == "" {
			engine = t.Engine
		} else if t.Engine != engine {
			return nil, planErrorf(CodeCrossSourceBlocked,
				"selected tables span multiple engines; raw SQL can target only one")
		}
		allowed = append(allowed, t)
	}

	if err := sqlguard.CheckStatementLiterals(rawSQL); err != nil {
		s.logger.Warn("Raw SQL rejected by literal screen",
			zap.String("sql", logging.SanitizeQuery(rawSQL)))
		return nil, err
	}

	guard := sqlguard.NewGuard(engine, allowed)
	rewritten, err := guard.Rewrite(rawSQL)
	if err != nil {
		// Fail closed. Guard rejections carry their own typed codes.
		var guardErr *sqlguard.GuardError
		if errors.As(err, &guardErr) {
			return nil, err
		}
		return nil, planErrorf(CodePlanBuildFailed, "sql rewrite failed: %v", err)
	}

	tableIDList := make([]uuid.UUID, len(allowed))
	for i, t := range allowed {
		tableIDList[i] = t.ID
	}

	plan := &models.QueryPlan{
		Engine:      engine,
		SQL:         rewritten,
		RootTableID: allowed[0].ID,
		TableIDs:    tableIDList,
	}
	return s.run(ctx, plan)
}

// run dispatches a compiled plan to its engine. Only transient failures are
// retried; everything else surfaces immediately as a typed execution error.
func (s *queryService) run(ctx context.Context, plan *models.QueryPlan) (*QueryResult, error) {
	executor, err := s.factory.Executor(ctx, plan.Engine)
	if err != nil {
		return nil, planErrorf(CodeEngineNotSupported, "%v", err)
	}
	defer func() { _ = executor.Close() }()

	var result *datasource.QueryResult
	err = retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		var execErr error
		result, execErr = executor.Execute(ctx, plan.SQL, plan.Params)
		return execErr
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.logger.Warn("Query execution failed",
			zap.String("engine", plan.Engine),
			zap.String("sql", logging.SanitizeQuery(plan.SQL)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, planErrorf(CodeQueryExecutionFailed, "%v", err)
	}

	s.logger.Debug("Query executed",
		zap.String("engine", plan.Engine),
		zap.Int64("rows", result.RowCount))

	return &QueryResult{
		Columns:  result.Columns,
		Rows:     result.Rows,
		RowCount: result.RowCount,
		Plan:     plan,
	}, nil
}
