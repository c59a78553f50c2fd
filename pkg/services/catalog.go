package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrybi/semantic-engine/pkg/apperrors"
	"github.com/quarrybi/semantic-engine/pkg/models"
	"github.com/quarrybi/semantic-engine/pkg/repositories"
)

// Catalog is an in-memory snapshot of one data model: its tables and
// relationships as of a single load. Snapshots are built per request and
// never cached across requests, so concurrent edits are visible on the next
// call.
type Catalog struct {
	Model         *models.DataModel
	Tables        []*models.ModelTable
	Relationships []*models.ModelRelationship

	tablesByID map[uuid.UUID]*models.ModelTable
}

// Table returns the table with the given ID, or nil.
func (c *Catalog) Table(id uuid.UUID) *models.ModelTable {
	return c.tablesByID[id]
}

// CatalogService loads data-model snapshots.
type CatalogService interface {
	// EnsureDefaultModel returns the workspace's default data model,
	// creating it idempotently on first access.
	EnsureDefaultModel(ctx context.Context, workspaceID uuid.UUID) (*models.DataModel, error)

	// Load builds a full catalog snapshot. All-or-nothing: a partially
	// loadable model is an error, never a truncated catalog.
	Load(ctx context.Context, dataModelID uuid.UUID) (*Catalog, error)
}

type catalogService struct {
	modelRepo repositories.DataModelRepository
	tableRepo repositories.ModelTableRepository
	relRepo   repositories.RelationshipRepository
	logger    *zap.Logger
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(
	modelRepo repositories.DataModelRepository,
	tableRepo repositories.ModelTableRepository,
	relRepo repositories.RelationshipRepository,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		modelRepo: modelRepo,
		tableRepo: tableRepo,
		relRepo:   relRepo,
		logger:    logger.Named("catalog"),
	}
}

func (s *catalogService) EnsureDefaultModel(ctx context.Context, workspaceID uuid.UUID) (*models.DataModel, error) {
	model, err := s.modelRepo.EnsureDefault(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCatalogLoad, err)
	}
	return model, nil
}

func (s *catalogService) Load(ctx context.Context, dataModelID uuid.UUID) (*Catalog, error) {
	model, err := s.modelRepo.Get(ctx, dataModelID)
	if err != nil {
		return nil, err
	}

	tables, err := s.tableRepo.GetByDataModel(ctx, dataModelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCatalogLoad, err)
	}

	relationships, err := s.relRepo.GetByDataModel(ctx, dataModelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCatalogLoad, err)
	}

	catalog := &Catalog{
		Model:         model,
		Tables:        tables,
		Relationships: relationships,
		tablesByID:    make(map[uuid.UUID]*models.ModelTable, len(tables)),
	}

	for _, t := range tables {
		annotateExecutability(t)
		catalog.tablesByID[t.ID] = t
	}

	s.logger.Debug("Loaded catalog snapshot",
		zap.String("data_model_id", dataModelID.String()),
		zap.Int("tables", len(tables)),
		zap.Int("relationships", len(relationships)))

	return catalog, nil
}

// annotateExecutability marks tables the planner must refuse to touch.
// Non-executable tables stay visible for display.
func annotateExecutability(t *models.ModelTable) {
	switch {
	case !models.SupportedEngine(t.Engine):
		t.Executable = false
		t.ExecutableReason = fmt.Sprintf("engine %q is not supported for query execution", t.Engine)
	case t.RuntimeRef == "":
		t.Executable = false
		t.ExecutableReason = "table has no resolved runtime reference yet"
	default:
		t.Executable = true
		t.ExecutableReason = ""
	}
}
