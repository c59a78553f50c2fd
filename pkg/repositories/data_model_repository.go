package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quarrybi/semantic-engine/pkg/apperrors"
	"github.com/quarrybi/semantic-engine/pkg/database"
	"github.com/quarrybi/semantic-engine/pkg/models"
)

// DataModelRepository provides data access for data models.
type DataModelRepository interface {
	// EnsureDefault returns the workspace's default data model, creating it
	// if it does not exist yet. Safe under concurrent callers.
	EnsureDefault(ctx context.Context, workspaceID uuid.UUID) (*models.DataModel, error)
	Get(ctx context.Context, id uuid.UUID) (*models.DataModel, error)
	GetDefault(ctx context.Context, workspaceID uuid.UUID) (*models.DataModel, error)
}

type dataModelRepository struct{}

// NewDataModelRepository creates a new DataModelRepository.
func NewDataModelRepository() DataModelRepository {
	return &dataModelRepository{}
}

var _ DataModelRepository = (*dataModelRepository)(nil)

func (r *dataModelRepository) EnsureDefault(ctx context.Context, workspaceID uuid.UUID) (*models.DataModel, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	// Partial unique index on (workspace_id) WHERE is_default makes this
	// race-safe: concurrent callers converge on one row.
	query := `
		INSERT INTO semantic_data_models (id, workspace_id, name, is_default, created_at)
		VALUES ($1, $2, $3, TRUE, $4)
		ON CONFLICT (workspace_id) WHERE is_default DO UPDATE SET workspace_id = EXCLUDED.workspace_id
		RETURNING id, workspace_id, name, is_default, created_at`

	model := &models.DataModel{}
	err := scope.Conn.QueryRow(ctx, query,
		uuid.New(), workspaceID, "Default", time.Now(),
	).Scan(&model.ID, &model.WorkspaceID, &model.Name, &model.IsDefault, &model.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure default data model: %w", err)
	}

	return model, nil
}

func (r *dataModelRepository) Get(ctx context.Context, id uuid.UUID) (*models.DataModel, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	query := `
		SELECT id, workspace_id, name, is_default, created_at
		FROM semantic_data_models
		WHERE id = $1`

	model := &models.DataModel{}
	err := scope.Conn.QueryRow(ctx, query, id).Scan(
		&model.ID, &model.WorkspaceID, &model.Name, &model.IsDefault, &model.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data model: %w", err)
	}

	return model, nil
}

func (r *dataModelRepository) GetDefault(ctx context.Context, workspaceID uuid.UUID) (*models.DataModel, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	query := `
		SELECT id, workspace_id, name, is_default, created_at
		FROM semantic_data_models
		WHERE workspace_id = $1 AND is_default`

	model := &models.DataModel{}
	err := scope.Conn.QueryRow(ctx, query, workspaceID).Scan(
		&model.ID, &model.WorkspaceID, &model.Name, &model.IsDefault, &model.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default data model: %w", err)
	}

	return model, nil
}
