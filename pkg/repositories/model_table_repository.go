package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quarrybi/semantic-engine/pkg/apperrors"
	"github.com/quarrybi/semantic-engine/pkg/database"
	"github.com/quarrybi/semantic-engine/pkg/models"
)

// ModelTableRepository provides data access for model tables. Rows are
// written by the warehouse sync pipeline; this service only reads them.
type ModelTableRepository interface {
	GetByDataModel(ctx context.Context, dataModelID uuid.UUID) ([]*models.ModelTable, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ModelTable, error)
}

type modelTableRepository struct{}

// NewModelTableRepository creates a new ModelTableRepository.
func NewModelTableRepository() ModelTableRepository {
	return &modelTableRepository{}
}

var _ ModelTableRepository = (*modelTableRepository)(nil)

func (r *modelTableRepository) GetByDataModel(ctx context.Context, dataModelID uuid.UUID) ([]*models.ModelTable, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	query := `
		SELECT id, data_model_id, synced_table_id, display_name, dataset_name,
		       source_type, engine, COALESCE(runtime_ref, ''), columns
		FROM semantic_model_tables
		WHERE data_model_id = $1
		ORDER BY display_name`

	rows, err := scope.Conn.Query(ctx, query, dataModelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query model tables: %w", err)
	}
	defer rows.Close()

	var tables []*models.ModelTable
	for rows.Next() {
		table, err := scanModelTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model tables: %w", err)
	}

	return tables, nil
}

func (r *modelTableRepository) Get(ctx context.Context, id uuid.UUID) (*models.ModelTable, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	query := `
		SELECT id, data_model_id, synced_table_id, display_name, dataset_name,
		       source_type, engine, COALESCE(runtime_ref, ''), columns
		FROM semantic_model_tables
		WHERE id = $1`

	row := scope.Conn.QueryRow(ctx, query, id)
	table, err := scanModelTable(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return table, nil
}

// scanModelTable scans a model table row. The columns field is JSONB and
// decodes directly into []ModelColumn via pgx.
func scanModelTable(row pgx.Row) (*models.ModelTable, error) {
	table := &models.ModelTable{}
	err := row.Scan(
		&table.ID, &table.DataModelID, &table.SyncedTableID,
		&table.DisplayName, &table.DatasetName,
		&table.SourceType, &table.Engine, &table.RuntimeRef,
		&table.Columns,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pgx.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan model table: %w", err)
	}
	return table, nil
}
