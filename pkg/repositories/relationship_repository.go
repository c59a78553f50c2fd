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

// RelationshipRepository provides data access for model relationships.
type RelationshipRepository interface {
	GetByDataModel(ctx context.Context, dataModelID uuid.UUID) ([]*models.ModelRelationship, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ModelRelationship, error)
	// Upsert inserts the relationship or, when an edge with the same
	// canonical key already exists in the model, overwrites its type,
	// direction and validation fields. rel.ID is set to the surviving row.
	Upsert(ctx context.Context, rel *models.ModelRelationship) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type relationshipRepository struct{}

// NewRelationshipRepository creates a new RelationshipRepository.
func NewRelationshipRepository() RelationshipRepository {
	return &relationshipRepository{}
}

var _ RelationshipRepository = (*relationshipRepository)(nil)

func (r *relationshipRepository) GetByDataModel(ctx context.Context, dataModelID uuid.UUID) ([]*models.ModelRelationship, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	query := `
		SELECT id, data_model_id, from_table_id, from_column, to_table_id, to_column,
		       relationship_type, cross_filter_direction, validation_status,
		       COALESCE(validation_reason, ''), created_at, updated_at
		FROM semantic_model_relationships
		WHERE data_model_id = $1
		ORDER BY created_at, id`

	rows, err := scope.Conn.Query(ctx, query, dataModelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var relationships []*models.ModelRelationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		relationships = append(relationships, rel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationships: %w", err)
	}

	return relationships, nil
}

func (r *relationshipRepository) Get(ctx context.Context, id uuid.UUID) (*models.ModelRelationship, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	query := `
		SELECT id, data_model_id, from_table_id, from_column, to_table_id, to_column,
		       relationship_type, cross_filter_direction, validation_status,
		       COALESCE(validation_reason, ''), created_at, updated_at
		FROM semantic_model_relationships
		WHERE id = $1`

	rel, err := scanRelationship(scope.Conn.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return rel, nil
}

func (r *relationshipRepository) Upsert(ctx context.Context, rel *models.ModelRelationship) error {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no workspace scope in context")
	}

	now := time.Now()
	rel.UpdatedAt = now
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = now
	}
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}

	// canonical_key is order-independent over the two endpoints, so an edge
	// proposed from either direction lands on the same row. The stored
	// endpoint order and cardinality of the winning write are kept as-is.
	query := `
		INSERT INTO semantic_model_relationships (
			id, data_model_id, canonical_key,
			from_table_id, from_column, to_table_id, to_column,
			relationship_type, cross_filter_direction,
			validation_status, validation_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (data_model_id, canonical_key) DO UPDATE SET
			from_table_id = EXCLUDED.from_table_id,
			from_column = EXCLUDED.from_column,
			to_table_id = EXCLUDED.to_table_id,
			to_column = EXCLUDED.to_column,
			relationship_type = EXCLUDED.relationship_type,
			cross_filter_direction = EXCLUDED.cross_filter_direction,
			validation_status = EXCLUDED.validation_status,
			validation_reason = EXCLUDED.validation_reason,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := scope.Conn.QueryRow(ctx, query,
		rel.ID, rel.DataModelID, rel.CanonicalKey(),
		rel.FromTableID, rel.FromColumn, rel.ToTableID, rel.ToColumn,
		rel.Type, rel.CrossFilterDirection,
		rel.ValidationStatus, nullableString(rel.ValidationReason), rel.CreatedAt, rel.UpdatedAt,
	).Scan(&rel.ID, &rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert relationship: %w", err)
	}

	return nil
}

func (r *relationshipRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no workspace scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM semantic_model_relationships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanRelationship(row pgx.Row) (*models.ModelRelationship, error) {
	rel := &models.ModelRelationship{}
	err := row.Scan(
		&rel.ID, &rel.DataModelID,
		&rel.FromTableID, &rel.FromColumn, &rel.ToTableID, &rel.ToColumn,
		&rel.Type, &rel.CrossFilterDirection, &rel.ValidationStatus,
		&rel.ValidationReason, &rel.CreatedAt, &rel.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pgx.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan relationship: %w", err)
	}
	return rel, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
